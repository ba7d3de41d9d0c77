package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("info", "json", &buf)
	require.NoError(t, err)

	Component(l, "tcp-server").Info("listening", "port", 8080)
	l.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "listening", line["msg"])
	assert.Equal(t, "tcp-server", line["component"])
	assert.EqualValues(t, 8080, line["port"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", "text", &buf)
	require.NoError(t, err)

	l.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "source=")
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("chatty", "text", nil)
	assert.Error(t, err)

	_, err = New("info", "xml", nil)
	assert.Error(t, err)
}
