package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringhist/pkg/config"
)

func TestNewWithValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			log, err := New(&config.LoggingConfig{Level: level})
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNewWithInvalidLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestTestLoggerCapturesMessages(t *testing.T) {
	log := NewTestLogger()

	log.Info("scan started")
	log.WarnWithFields("slow page", map[string]interface{}{"page": 3})
	log.Error("fetch failed")

	assert.True(t, log.HasMessage("scan started"))
	assert.True(t, log.HasMessage("slow page"))
	assert.Len(t, log.GetMessagesByLevel("ERROR"), 1)

	warns := log.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, 3, warns[0].Fields["page"])
}

func TestTestLoggerFieldChaining(t *testing.T) {
	log := NewTestLogger()

	log.WithField("device", "Front Door").WithField("page", 2).Info("page fetched")

	messages := log.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Front Door", messages[0].Fields["device"])
	assert.Equal(t, 2, messages[0].Fields["page"])
}

func TestTestLoggerClear(t *testing.T) {
	log := NewTestLogger()
	log.Info("one")
	log.Clear()
	assert.Empty(t, log.GetMessages())
}
