package logger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger is a logger implementation for testing that captures all log messages
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
	zerolog  *zerolog.Logger
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	nop := zerolog.Nop()
	return &TestLogger{
		messages: make([]LogMessage, 0),
		zerolog:  &nop,
	}
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil, nil) }
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg, nil, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields, nil)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields, nil)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields, nil)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields, nil)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.log("FATAL", msg, fields, nil)
}

// WithField adds a field to the logger context
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return &testLoggerContext{base: l, fields: map[string]interface{}{key: value}}
}

// WithFields adds multiple fields to the logger context
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return &testLoggerContext{base: l, fields: fields}
}

// WithError adds an error to the logger context
func (l *TestLogger) WithError(err error) Logger {
	return &testLoggerContext{base: l, err: err}
}

// WithContext is a no-op for the test logger
func (l *TestLogger) WithContext(ctx context.Context) Logger { return l }

// GetZerolog returns the underlying zerolog instance
func (l *TestLogger) GetZerolog() *zerolog.Logger { return l.zerolog }

// log captures a log message
func (l *TestLogger) log(level, msg string, fields map[string]interface{}, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  fields,
		Error:   err,
	})
}

// GetMessages returns all captured log messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := make([]LogMessage, len(l.messages))
	copy(messages, l.messages)
	return messages
}

// GetMessagesByLevel returns all messages of a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	var filtered []LogMessage
	for _, msg := range l.messages {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage checks if a message with the given text was logged
func (l *TestLogger) HasMessage(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, msg := range l.messages {
		if msg.Message == text {
			return true
		}
	}
	return false
}

// Clear clears all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = l.messages[:0]
}

// testLoggerContext carries fields/error context into the shared TestLogger
type testLoggerContext struct {
	base   *TestLogger
	fields map[string]interface{}
	err    error
}

func (c *testLoggerContext) Debug(msg string) { c.base.log("DEBUG", msg, c.fields, c.err) }
func (c *testLoggerContext) Info(msg string)  { c.base.log("INFO", msg, c.fields, c.err) }
func (c *testLoggerContext) Warn(msg string)  { c.base.log("WARN", msg, c.fields, c.err) }
func (c *testLoggerContext) Error(msg string) { c.base.log("ERROR", msg, c.fields, c.err) }
func (c *testLoggerContext) Fatal(msg string) { c.base.log("FATAL", msg, c.fields, c.err) }

func (c *testLoggerContext) DebugWithFields(msg string, fields map[string]interface{}) {
	c.base.log("DEBUG", msg, c.merge(fields), c.err)
}

func (c *testLoggerContext) InfoWithFields(msg string, fields map[string]interface{}) {
	c.base.log("INFO", msg, c.merge(fields), c.err)
}

func (c *testLoggerContext) WarnWithFields(msg string, fields map[string]interface{}) {
	c.base.log("WARN", msg, c.merge(fields), c.err)
}

func (c *testLoggerContext) ErrorWithFields(msg string, fields map[string]interface{}) {
	c.base.log("ERROR", msg, c.merge(fields), c.err)
}

func (c *testLoggerContext) FatalWithFields(msg string, fields map[string]interface{}) {
	c.base.log("FATAL", msg, c.merge(fields), c.err)
}

func (c *testLoggerContext) WithField(key string, value interface{}) Logger {
	return &testLoggerContext{base: c.base, fields: c.merge(map[string]interface{}{key: value}), err: c.err}
}

func (c *testLoggerContext) WithFields(fields map[string]interface{}) Logger {
	return &testLoggerContext{base: c.base, fields: c.merge(fields), err: c.err}
}

func (c *testLoggerContext) WithError(err error) Logger {
	return &testLoggerContext{base: c.base, fields: c.fields, err: err}
}

func (c *testLoggerContext) WithContext(ctx context.Context) Logger { return c }

func (c *testLoggerContext) GetZerolog() *zerolog.Logger { return c.base.zerolog }

func (c *testLoggerContext) merge(additional map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(c.fields)+len(additional))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range additional {
		merged[k] = v
	}
	return merged
}
