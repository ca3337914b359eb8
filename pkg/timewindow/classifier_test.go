package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
)

func newTestClassifier(t *testing.T, zone string) *Classifier {
	t.Helper()
	return NewClassifier(Window{EndHour: 5, EndMinute: 30}, zone, logger.NewNopLogger())
}

func TestClassifyInsideWindow(t *testing.T) {
	c := newTestClassifier(t, "Europe/London")

	// 03:15 UTC in winter is 03:15 in London
	ts := ring.NewTimestamp(time.Date(2024, 1, 30, 3, 15, 0, 0, time.UTC))

	local, hit, err := c.Classify(ts)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, local.Hour())
	assert.Equal(t, 15, local.Minute())
}

func TestClassifyBoundarySecondPrecision(t *testing.T) {
	c := newTestClassifier(t, "UTC")

	exact := ring.NewTimestamp(time.Date(2024, 1, 30, 5, 30, 0, 0, time.UTC))
	_, hit, err := c.Classify(exact)
	require.NoError(t, err)
	assert.True(t, hit, "exactly 05:30:00 is inside the window")

	oneLater := ring.NewTimestamp(time.Date(2024, 1, 30, 5, 30, 1, 0, time.UTC))
	_, hit, err = c.Classify(oneLater)
	require.NoError(t, err)
	assert.False(t, hit, "05:30:01 is outside the window")
}

func TestClassifyMidnight(t *testing.T) {
	c := newTestClassifier(t, "UTC")

	ts := ring.NewTimestamp(time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC))
	_, hit, err := c.Classify(ts)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestClassifyRespectsDST(t *testing.T) {
	c := newTestClassifier(t, "Europe/London")

	// 05:00 UTC in July is 06:00 BST, outside the window
	summer := ring.NewTimestamp(time.Date(2024, 7, 15, 5, 0, 0, 0, time.UTC))
	_, hit, err := c.Classify(summer)
	require.NoError(t, err)
	assert.False(t, hit)

	// 05:00 UTC in January is 05:00 GMT, inside
	winter := ring.NewTimestamp(time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC))
	_, hit, err = c.Classify(winter)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestClassifyNaiveEqualsZulu(t *testing.T) {
	c := newTestClassifier(t, "Europe/London")

	naiveLocal, naiveHit, err := c.Classify(ring.TextTimestamp("2024-01-30T01:15:00"))
	require.NoError(t, err)

	zuluLocal, zuluHit, err := c.Classify(ring.TextTimestamp("2024-01-30T01:15:00Z"))
	require.NoError(t, err)

	assert.Equal(t, naiveHit, zuluHit)
	assert.True(t, naiveLocal.Equal(zuluLocal))
}

func TestClassifyUnparsableTimestamp(t *testing.T) {
	c := newTestClassifier(t, "UTC")

	_, _, err := c.Classify(ring.TextTimestamp("gibberish"))
	assert.Error(t, err)
}

func TestClassifierZoneFallback(t *testing.T) {
	log := logger.NewTestLogger()
	c := NewClassifier(Window{EndHour: 5, EndMinute: 30}, "Not/AZone", log)

	assert.Equal(t, time.Local, c.Zone())
	assert.True(t, log.HasMessage("timezone unavailable, falling back to host local zone"))
}

func TestClassifierEmptyZoneUsesHostLocal(t *testing.T) {
	log := logger.NewTestLogger()
	c := NewClassifier(Window{EndHour: 5, EndMinute: 30}, "", log)

	assert.Equal(t, time.Local, c.Zone())
	assert.True(t, log.HasMessage("no timezone configured, using host local zone"))
}

func TestClassifyDeterministic(t *testing.T) {
	c := newTestClassifier(t, "Europe/London")
	ts := ring.EpochTimestamp(1706576400)

	first, firstHit, err := c.Classify(ts)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, againHit, err := c.Classify(ts)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
		assert.Equal(t, firstHit, againHit)
	}
}

func TestParseZone(t *testing.T) {
	_, err := ParseZone("Europe/London")
	assert.NoError(t, err)

	_, err = ParseZone("Not/AZone")
	assert.Error(t, err)
}
