package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestSetupWritesConsole(t *testing.T) {
	var buf bytes.Buffer
	closer, err := Setup(Options{Level: "debug"}, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer closer.Close()

	l := For("session")
	l.Info().Str("guild", "g1").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "session") {
		t.Errorf("console output %q missing message or component", out)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("Setup() with bad level succeeded, want error")
	}
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	closer, err := Setup(Options{File: path}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	log.Warn().Msg("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file %q missing message", data)
	}
}
