package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDownload logs a recording download outcome
func LogDownload(device string, eventID int64, outcome string, err error) {
	fields := map[string]interface{}{
		"device":   device,
		"event_id": eventID,
		"outcome":  outcome,
	}

	l := GetLogger().WithFields(fields)

	if err != nil {
		l.WithError(err).Error("Recording download failed")
	} else {
		l.Info("Recording download finished")
	}
}

// LogCheckpointSaved logs a successful checkpoint write
func LogCheckpointSaved(path string, devices int) {
	GetLogger().WithFields(map[string]interface{}{
		"path":    path,
		"devices": devices,
	}).Info("Resume state saved")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
