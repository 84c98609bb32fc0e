package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewAppliesRequestedLevelAndFormat(t *testing.T) {
	logger := New("debug", "json")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	logger := New("not-a-level", "text")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestComponentTagsEntryWithComponentField(t *testing.T) {
	entry := Component(New("info", "text"), "scheduler")
	assert.Equal(t, "scheduler", entry.Data["component"])
}

func TestComponentToleratesNilLogger(t *testing.T) {
	entry := Component(nil, "scheduler")
	assert.NotNil(t, entry)
	assert.Equal(t, "scheduler", entry.Data["component"])
}
