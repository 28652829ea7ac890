// Package logging configures the process-wide slog logger.
//
// Output is JSON by default, or logfmt-style text. When a file path is
// configured, output goes to a size-rotated file. Request ids and session
// ids placed in the context with WithRequestID and WithSessionID are added to
// every record logged through the *Context methods. With RedactSecrets on,
// values under keys such as password, token or api_key are masked.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.SetDefault()
//
//	slog.InfoContext(logging.WithRequestID(ctx, id), "roast completed")
package logging
