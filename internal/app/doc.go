// Package app wires the analyzer web host: OpenTelemetry providers, the
// analysis runner and services, the chi router with its middleware chain,
// and the HTTP server.
//
// # Usage
//
//	cfg, _ := config.Load()
//	paths, _ := config.GetPaths(cfg.Paths)
//	application, err := app.NewApplication(cfg, paths, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run returns once ctx is canceled and the server has drained. Errors are
// returned to the caller; the package never exits the process.
package app
