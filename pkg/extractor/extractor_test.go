package extractor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/extractor"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	return loc
}

func TestDetectForgetPatternEnglish(t *testing.T) {
	got := extractor.DetectForgetPattern("not dr smith, anything but cleaning", "en")
	assert.Contains(t, got, "dr smith")
	assert.Contains(t, got, "cleaning")
}

func TestDetectForgetPatternSpanish(t *testing.T) {
	got := extractor.DetectForgetPattern("no quiero limpieza dental", "es")
	require.NotEmpty(t, got)
}

func TestDetectForgetPatternRussian(t *testing.T) {
	got := extractor.DetectForgetPattern("не доктор иванов", "ru")
	require.NotEmpty(t, got)
	assert.Contains(t, got[0], "доктор иванов")
}

func TestDetectForgetPatternHebrew(t *testing.T) {
	got := extractor.DetectForgetPattern("לא דוקטור כהן.", "he")
	require.NotEmpty(t, got)
	assert.Contains(t, got[0], "דוקטור כהן")
}

func TestDetectForgetPatternPortuguese(t *testing.T) {
	got := extractor.DetectForgetPattern("não quero limpeza dentaria.", "pt")
	require.NotEmpty(t, got)
}

func TestDetectSwitchPatternEnglish(t *testing.T) {
	sw := extractor.DetectSwitchPattern("instead of cleaning, i want whitening", "en")
	require.NotNil(t, sw)
	assert.Equal(t, "cleaning", sw.Exclude)
	assert.Equal(t, "whitening", sw.Desire)
}

func TestDetectSwitchPatternHebrew(t *testing.T) {
	sw := extractor.DetectSwitchPattern("במקום ניקוי, אני רוצה הלבנה.", "he")
	require.NotNil(t, sw)
	assert.Equal(t, "ניקוי", sw.Exclude)
	assert.Equal(t, "הלבנה", sw.Desire)
}

func TestDetectSwitchPatternPortuguese(t *testing.T) {
	sw := extractor.DetectSwitchPattern("em vez de limpeza, quero clareamento.", "pt")
	require.NotNil(t, sw)
	assert.Equal(t, "limpeza", sw.Exclude)
	assert.Equal(t, "clareamento", sw.Desire)
}

func TestDetectSwitchPatternNoMatch(t *testing.T) {
	sw := extractor.DetectSwitchPattern("I would like to book a cleaning", "en")
	assert.Nil(t, sw)
}

func TestDetectMetaReset(t *testing.T) {
	assert.True(t, extractor.DetectMetaReset("let's start over please", "en"))
	assert.True(t, extractor.DetectMetaReset("empezar de nuevo", "es"))
	assert.True(t, extractor.DetectMetaReset("начать заново", "ru"))
	assert.False(t, extractor.DetectMetaReset("i want a cleaning tomorrow", "en"))
}

func TestNormalizeTimeWindowTomorrowMorning(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, loc)

	window := extractor.NormalizeTimeWindow("can I come tomorrow morning", now, "en", loc)
	require.NotNil(t, window)
	assert.Equal(t, "tomorrow morning", window.Label)
	assert.Equal(t, 2, window.Start.Day())
	assert.Equal(t, 8, window.Start.Hour())
	assert.Equal(t, 12, window.End.Hour())
}

func TestNormalizeTimeWindowNextWeekdayAfternoon(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, loc) // Saturday

	window := extractor.NormalizeTimeWindow("next mon pm works for me", now, "en", loc)
	require.NotNil(t, window)
	assert.Equal(t, time.Monday, window.Start.Weekday())
	assert.Equal(t, 12, window.Start.Hour())
}

func TestNormalizeTimeWindowNoMatch(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, loc)
	assert.Nil(t, extractor.NormalizeTimeWindow("I'd like a cleaning", now, "en", loc))
}

func TestExtractMetaResetShortCircuitsOtherDetectors(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, loc)

	result := extractor.Extract("forget everything, instead of cleaning I want whitening tomorrow", "en", now, loc)
	assert.True(t, result.MetaReset)
	assert.Nil(t, result.Switch)
	assert.Nil(t, result.TimeWindow)
	assert.Empty(t, result.Excluded)
}

func TestExtractCollectsAllSignals(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, loc)

	result := extractor.Extract("instead of cleaning, i want whitening, tomorrow works best", "en", now, loc)
	assert.False(t, result.MetaReset)
	require.NotNil(t, result.Switch)
	assert.Equal(t, "cleaning", result.Switch.Exclude)
	assert.Equal(t, "whitening", result.Switch.Desire)
	require.NotNil(t, result.TimeWindow)
	assert.Equal(t, "tomorrow", result.TimeWindow.Label)
}
