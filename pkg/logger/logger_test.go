package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wosexport/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "chatty"},
			wantErr: true,
		},
		{
			name:    "file output",
			cfg:     &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestFileOutputReceivesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(&config.LoggingConfig{Level: "info", File: path})
	if err != nil {
		t.Fatal(err)
	}

	logger.WithField("range", "1-500").Info("Export range completed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"message":"Export range completed"`) {
		t.Errorf("message not found in log file: %s", out)
	}
	if !strings.Contains(out, `"app":"wosexport"`) {
		t.Errorf("app field not found in log file: %s", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, level)
	if err != nil {
		t.Fatal(err)
	}
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Info("hidden info")
	l.Warn("visible warning")

	out := buf.String()
	if strings.Contains(out, "hidden info") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible warning") {
		t.Error("warn message not found in output")
	}
}

func TestFieldChaining(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	l.WithField("query", "SO=(WATER RESEARCH)").
		WithFields(map[string]interface{}{"start": 1, "end": 500}).
		InfoWithFields("chained fields", map[string]interface{}{"status": "success"})

	out := buf.String()
	for _, want := range []string{
		"chained fields",
		`"query":"SO=(WATER RESEARCH)"`,
		`"start":1`,
		`"end":500`,
		`"status":"success"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("%s not found in %s", want, out)
		}
	}
}

func TestChildLoggersDoNotLeakFields(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	_ = l.WithField("child", true)
	l.Info("parent message")

	if strings.Contains(buf.String(), "child") {
		t.Error("parent logger picked up a child's field")
	}
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("dialog never closed")).Error("export failed")

	out := buf.String()
	if !strings.Contains(out, "export failed") || !strings.Contains(out, "dialog never closed") {
		t.Errorf("error not rendered: %s", out)
	}
}

func TestFieldTypes(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.WithFields(map[string]interface{}{
		"int64":    int64(456),
		"float":    3.14,
		"time":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"err":      errors.New("boom"),
		"custom":   struct{ Name string }{Name: "x"},
	}).Info("all types")

	out := buf.String()
	if !strings.Contains(out, `"strings":["a","b"]`) {
		t.Errorf("string slice not rendered: %s", out)
	}
	if !strings.Contains(out, `"err":"boom"`) {
		t.Errorf("error field not rendered: %s", out)
	}
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRangeOutcome(tl, "TS=(soil)", 1, 500, "success", 1, nil)
	LogRangeOutcome(tl, "TS=(soil)", 501, 1000, "failure", 7, errors.New("timeout"))
	LogRunProgress(tl, "TS=(soil)", 1, 4)
	LogComponentStart(tl, "session", map[string]interface{}{"channel": "sunshine"})
	LogComponentStop(tl, "session", "closed")

	if !tl.HasMessage("Export range completed") {
		t.Error("success outcome not logged")
	}
	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["range"] != "501-1000" {
		t.Errorf("unexpected warnings: %+v", warns)
	}
	if warns[0].Fields["error"] != "timeout" {
		t.Errorf("failure error not attached: %+v", warns[0].Fields)
	}

	var progress LogMessage
	for _, m := range tl.GetMessages() {
		if m.Message == "Export progress" {
			progress = m
		}
	}
	if progress.Fields["percentage"] != "25.0%" {
		t.Errorf("unexpected progress fields: %+v", progress.Fields)
	}
}

func TestTestLoggerSharesCaptureWithChildren(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "exporter").WithError(errors.New("x"))
	child.Warn("from child")
	tl.Info("from parent")

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Fields["component"] != "exporter" || msgs[0].Error == nil {
		t.Errorf("child context lost: %+v", msgs[0])
	}
	if msgs[1].Fields != nil {
		t.Errorf("parent should carry no fields: %+v", msgs[1])
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear() left messages behind")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	Info("info message")
	WithField("key", "value").Warn("with field")
	WithError(errors.New("x")).Warn("with error")

	if len(tl.GetMessages()) != 3 {
		t.Errorf("expected 3 captured messages, got %d", len(tl.GetMessages()))
	}
}
