package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigure(t *testing.T) {
	defer Configure("info", "json")

	assert.NoError(t, Configure("debug", "text"))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)

	assert.Error(t, Configure("loud", "json"))
	assert.Error(t, Configure("info", "xml"))
}

func TestComponentField(t *testing.T) {
	entry := Component("session")
	assert.Equal(t, "session", entry.Data["component"])
}
