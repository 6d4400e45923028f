package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	at, err := time.Parse("15:04:05", "14:30:07")
	if err != nil {
		t.Fatalf("bad clock: %v", err)
	}
	return func() time.Time { return at }
}

func TestActivityLogger_LineFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewActivityLogger(&buf)
	l.SetClock(fixedClock(t))

	l.Console("warning", "Slow network detected")
	l.PageError("ReferenceError: foo is not defined")
	l.RequestFailed("GET", "https://example.com/a", "net::ERR_TIMED_OUT")
	l.Response(503, "POST", "https://example.com/api")

	want := strings.Join([]string{
		"[14:30:07] [console:warning] Slow network detected",
		"[14:30:07] [pageerror] ReferenceError: foo is not defined",
		"[14:30:07] [requestfailed] GET https://example.com/a -> net::ERR_TIMED_OUT",
		"[14:30:07] [response:503] POST https://example.com/api",
	}, "\n") + "\n"

	if buf.String() != want {
		t.Fatalf("unexpected log output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestActivityLogger_ResponseStatusGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewActivityLogger(&buf)
	l.SetClock(fixedClock(t))

	// outside 400-599: dropped
	for _, status := range []int{200, 301, 399, 600} {
		l.Response(status, "GET", "https://example.com/")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no lines for non-error statuses, got:\n%s", buf.String())
	}

	// boundaries: logged
	l.Response(400, "GET", "https://example.com/x")
	l.Response(599, "GET", "https://example.com/y")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "[response:400]") || !strings.Contains(lines[1], "[response:599]") {
		t.Fatalf("unexpected boundary lines:\n%s", buf.String())
	}
}

func TestOpenActivityLog_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "playwright_activity.log")

	first, err := OpenActivityLog(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first.mirror = nil
	first.SetClock(fixedClock(t))
	first.PageError("first run")
	first.Close()

	second, err := OpenActivityLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second.mirror = nil
	second.SetClock(fixedClock(t))
	second.PageError("second run")
	second.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "first run") || !strings.Contains(got, "second run") {
		t.Fatalf("expected both runs in log, got:\n%s", got)
	}
	if strings.Index(got, "first run") > strings.Index(got, "second run") {
		t.Fatalf("expected append order preserved, got:\n%s", got)
	}
}
