package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roastline-hq/roastline/pkg/cli"
	"roastline-hq/roastline/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change runtime settings",
	Long: `Runtime settings control the budget, the daily quotas, input limits, the
model and the enable_roasting kill switch. Changes apply to the next request
of a running server; no restart is needed.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Example: `  # Turn roasting off
  roastline settings set enable_roasting false

  # Raise the monthly budget to $50
  roastline settings set monthly_budget_cents 5000`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsListCmd, settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

type settingOutput struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("settings list", err)
	}
	defer counters.Close()

	all, err := store.All(cmd.Context())
	if err != nil {
		return cli.NewCommandError("settings list", err)
	}

	table := &cli.Table{Headers: []string{"KEY", "VALUE", "DESCRIPTION"}}
	out := make([]settingOutput, 0, len(all))
	for _, s := range all {
		table.AddRow(s.Key, s.Value, s.Description)
		out = append(out, settingOutput{Key: s.Key, Value: s.Value, Description: s.Description})
	}
	return cli.Render(cmd.OutOrStdout(), format, table, out)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if _, ok := settings.Lookup(key); !ok {
		return cli.NewCommandError("settings get", fmt.Errorf("%w: %s", settings.ErrUnknownKey, key))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("settings get", err)
	}
	defer counters.Close()

	value, _, err := store.Get(cmd.Context(), key)
	if err != nil {
		return cli.NewCommandError("settings get", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("settings set", err)
	}
	defer counters.Close()

	if err := store.Set(cmd.Context(), key, value); err != nil {
		return cli.NewCommandError("settings set", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", key, value)
	return nil
}
