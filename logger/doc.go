// Package logger provides structured logging on top of zerolog.
//
// Services initialise the global logger once from configuration and then
// derive component-scoped loggers:
//
//	logger.Init(&cfg.Logging)
//	log := logger.Get("dispatcher")
//	log.Info("node assigned", logger.Fields(logger.FieldNode, addr))
package logger
