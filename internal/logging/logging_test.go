package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter(t *testing.T) {
	t.Cleanup(func() { _ = Setup("info", false) })

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "warn", true))
	require.Equal(t, log.WarnLevel, log.GetLevel())

	log.Info("dropped")
	log.WithField("component", "test").Warn("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "test", entry["component"])
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	require.Error(t, Setup("loud", false))
}
