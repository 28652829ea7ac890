/*
Package cli provides the helpers shared by the roastline commands.

Output Formatting:

Commands print either an aligned table or JSON, selected by --output:

	format, err := cli.ParseOutputFormat(flagValue)
	table := &cli.Table{Headers: []string{"KEY", "VALUE"}}
	table.AddRow("enable_roasting", "true")
	return cli.Render(os.Stdout, format, table, settings)

Errors and Exit Codes:

ConfigError marks a configuration problem and maps to ExitConfig; any other
error maps to ExitFailure:

	os.Exit(cli.ExitCode(err))

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
