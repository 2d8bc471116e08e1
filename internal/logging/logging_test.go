package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	discard := FromContext(context.Background())
	discard.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("logger without context should discard, got %q", buf.String())
	}

	ctx := WithLogger(context.Background(), WithSymbol(logger, "KO"))
	kept := FromContext(ctx)
	kept.Info().Msg("kept")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if entry["symbol"] != "KO" || entry["message"] != "kept" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLogEventFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	LogEventFailure(logger, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), 0.42, errors.New("no closes in window"))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"ex_date":"2021-03-15"`, `"amount":0.42`, `no closes in window`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestNewLoggerWithConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "divrec.log")
	logger := NewLoggerWithConfig(LogConfig{Level: "warn", File: true, FilePath: path, MaxSize: 1})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}
	logger.Warn().Msg("written")
}
