package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCF_WritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	InfoCF("supply", "Transfer sent", map[string]any{"to": "0xabc", "nonce": 7})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "supply", line["component"])
	assert.Equal(t, "Transfer sent", line["message"])
	assert.Equal(t, "0xabc", line["to"])
	assert.EqualValues(t, 7, line["nonce"])
}

func TestInit_FileAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init(Options{Level: "warn", File: path}))
	defer func() {
		Close()
		SetOutput(os.Stderr)
	}()

	InfoC("rpc", "dropped")
	WarnCF("rpc", "kept", nil)
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}
