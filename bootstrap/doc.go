// Package bootstrap assembles a runkit application from its configuration.
//
// New applies config defaults, builds the logger, starts the enabled
// OpenTelemetry providers and loads the recipe catalog with tracing,
// metrics and logging wired into every compiled recipe. Serve then exposes
// the catalog over HTTP until a shutdown signal, while RunTask runs a
// finite job (a CLI invocation) with the same setup.
//
//	cfg, err := bootstrap.Load("")
//	if err != nil {
//	    return err
//	}
//	app, err := bootstrap.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	return app.Serve(ctx)
package bootstrap
