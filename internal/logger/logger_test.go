package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactorMasksTokens(t *testing.T) {
	r := NewRedactor()

	cases := []string{
		`Authorization: dGhpc2lzYXZlcnlsb25nYm90dG9rZW4xMjM0`,
		`Bearer abc.def.ghi`,
		`https://cdn.example.com/file?access_token=abcdef123456`,
		`password="hunter2"`,
		`secret: "webhook-shared-secret"`,
	}
	for _, input := range cases {
		assert.Contains(t, r.Redact(input), "[REDACTED]", "input %q", input)
	}

	assert.Equal(t, "plain log line", r.Redact("plain log line"))
}

func TestRedactorAddPattern(t *testing.T) {
	r := NewRedactor()
	require.NoError(t, r.AddPattern(`code=[A-Z0-9]+`))
	assert.Contains(t, r.Redact("pairing code=ABC123"), "[REDACTED]")

	assert.Error(t, r.AddPattern(`([`))
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	log, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	log.Info().Str("account", "default").Msg("started")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started")
	assert.Contains(t, string(data), `"account":"default"`)
}

func TestLoggerRedactsFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	log, err := New(Config{Level: "info", File: path, Redaction: true})
	require.NoError(t, err)

	log.Info().Msg("sending Bearer verysecrettokenvalue")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "verysecrettokenvalue")
	assert.Contains(t, string(data), "[REDACTED]")
}

func TestRotatingWriterRotatesBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotate.log")

	w, err := NewRotatingWriter(path, 1, 0, false)
	require.NoError(t, err)
	defer w.Close()

	// two writes that together exceed 1MB force a rotation
	payload := strings.Repeat("x", 600*1024)
	_, err = w.Write([]byte(payload))
	require.NoError(t, err)
	_, err = w.Write([]byte(payload))
	require.NoError(t, err)

	rotated, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
}
