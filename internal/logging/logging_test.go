package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("line %q is not JSON: %v", line, err)
	}
	return entry
}

func TestEmit_JSONLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelInfo)

	logger.Info("snapshot recorded", logging.Field{Key: "service", Value: "acme"})

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["level"] != "info" || entry["msg"] != "snapshot recorded" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["service"] != "acme" {
		t.Errorf("field lost: %v", entry)
	}
	if ts, _ := entry["time"].(string); ts == "" {
		t.Error("missing timestamp")
	}
}

func TestEmit_LevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
}

func TestWith_FieldsPersistAndAccumulate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelInfo)

	child := logger.With(logging.Field{Key: "component", Value: "tracker"}).
		With(logging.Field{Key: "batch_id", Value: "b-1"})
	child.Info("started")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["component"] != "tracker" || entry["batch_id"] != "b-1" {
		t.Errorf("persistent fields missing: %v", entry)
	}
}

func TestWith_DoesNotAffectParent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelInfo)

	logger.With(logging.Field{Key: "component", Value: "child"})
	logger.Info("parent line")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if _, ok := entry["component"]; ok {
		t.Errorf("child field leaked into parent: %v", entry)
	}
}

func TestEmit_UnmarshalableFieldKeepsLineParseable(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelInfo)

	logger.Info("bad field", logging.Field{Key: "ch", Value: make(chan int)})

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["msg"] != "bad field" {
		t.Errorf("fallback line lost the message: %v", entry)
	}
	if logErr, _ := entry["logError"].(string); logErr == "" {
		t.Error("fallback line should carry the marshal error")
	}
}
