package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"
)

// TestTerminalHandlerLevel checks that a logger built on the terminal handler
// respects its level and carries With attributes.
func TestTerminalHandlerLevel(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewTerminalHandlerWithLevel(out, slog.LevelInfo, false))
	logger.Debug("should not be printed")
	if out.Len() != 0 {
		t.Fatalf("debug record emitted at info level: %q", out.String())
	}
	logger.With("conn", "ipc").Info("connection up", "reqid", 7)
	have := out.String()
	if !strings.HasPrefix(have, "INFO [") {
		t.Errorf("missing level prefix: %q", have)
	}
	for _, want := range []string{"connection up", "conn=ipc", "reqid=7"} {
		if !strings.Contains(have, want) {
			t.Errorf("output %q missing %q", have, want)
		}
	}
}

func TestTerminalHandlerValues(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewTerminalHandler(out, false))
	logger.Trace("values",
		"big", big.NewInt(1234567),
		"nilbig", (*big.Int)(nil),
		"err", errors.New("boom"),
		"str", "has space",
		"dur", 1500*time.Millisecond,
	)
	have := out.String()
	for _, want := range []string{"big=1,234,567", "nilbig=<nil>", "err=boom", `str="has space"`, "dur=1.5s"} {
		if !strings.Contains(have, want) {
			t.Errorf("output %q missing %q", have, want)
		}
	}
}

func TestLogfmtHandlerNormalizesLevel(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(LogfmtHandlerWithLevel(out, LevelTrace))
	logger.Trace("unknown response", "reqid", 42)
	have := out.String()
	if !strings.Contains(have, "lvl=trace") {
		t.Errorf("output %q missing lvl=trace", have)
	}
	if !strings.Contains(have, "reqid=42") {
		t.Errorf("output %q missing reqid", have)
	}
}

func TestOddAttributesNormalized(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewTerminalHandler(out, false))
	logger.Info("odd", "key")
	if !strings.Contains(out.String(), errorKey) {
		t.Errorf("output %q missing %s marker", out.String(), errorKey)
	}
}

func TestPrintOrigins(t *testing.T) {
	PrintOrigins(true)
	defer PrintOrigins(false)

	out := new(bytes.Buffer)
	logger := NewLogger(NewTerminalHandler(out, false))
	logger.Info("with origin", "reqid", 1)
	if have := out.String(); !strings.Contains(have, "caller=logger_test.go:") {
		t.Errorf("output %q missing call site", have)
	}
}

func TestJSONHandler(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(JSONHandlerWithLevel(out, LevelInfo))
	logger.Debug("dropped")
	logger.Warn("connection lost", "pending", 3)
	var rec map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("output %q is not a single JSON record: %v", out.String(), err)
	}
	if rec["msg"] != "connection lost" || rec["pending"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLvlFromString(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"trace": LevelTrace,
		"dbug":  LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"eror":  LevelError,
		"crit":  LevelCrit,
	} {
		have, err := LvlFromString(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if have != want {
			t.Errorf("%s: have %v, want %v", in, have, want)
		}
	}
	if _, err := LvlFromString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if FromLegacyLevel(3) != LevelInfo || FromLegacyLevel(9) != LevelTrace {
		t.Error("legacy level mapping is off")
	}
}
