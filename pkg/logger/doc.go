// Package logger provides structured logging for ringhist built on zerolog.
//
// The package exposes a Logger interface so components can be tested with the
// capture logger in test_logger.go or silenced with NewNopLogger. A global
// instance is configured once via Initialize and shared through GetLogger.
package logger
