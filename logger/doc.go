// Package logger provides structured logging using zerolog.
//
// It supports JSON and console output, level configuration, component-scoped
// loggers and context enrichment with request and run IDs.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//	  components:
//	    engine: "debug"
//
// # Usage
//
//	logger.Configure(logger.New(&cfg, "runkit"), cfg.Components)
//	log := logger.Get("engine")
//	log.WithContext(ctx).Info("run finished", logger.Fields(logger.FieldRecipe, "shout"))
package logger
