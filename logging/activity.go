package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActivityLogger records browser lifecycle events, one timestamped line per
// event, appended to a dedicated activity log file. The file is opened in
// append mode and persists across runs. Only event metadata is written, never
// page content.
//
// Line formats:
//
//	[15:04:05] [console:<type>] <text>
//	[15:04:05] [pageerror] <message>
//	[15:04:05] [requestfailed] <METHOD> <URL> -> <reason>
//	[15:04:05] [response:<status>] <METHOD> <URL>
type ActivityLogger struct {
	mu     sync.Mutex
	w      io.Writer
	mirror io.Writer
	file   *os.File
	now    func() time.Time
}

// OpenActivityLog opens (or creates) the activity log at path in append mode,
// creating parent directories as needed. Lines are mirrored to stdout.
func OpenActivityLog(path string) (*ActivityLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return &ActivityLogger{w: f, mirror: os.Stdout, file: f, now: time.Now}, nil
}

// NewActivityLogger writes lines to w. Used by tests and by callers that
// already hold an open file.
func NewActivityLogger(w io.Writer) *ActivityLogger {
	return &ActivityLogger{w: w, now: time.Now}
}

// SetClock overrides the timestamp source.
func (l *ActivityLogger) SetClock(now func() time.Time) {
	l.now = now
}

// Console records a browser console message.
func (l *ActivityLogger) Console(msgType, text string) {
	l.line(fmt.Sprintf("[console:%s] %s", msgType, text))
}

// PageError records an uncaught page error.
func (l *ActivityLogger) PageError(message string) {
	l.line(fmt.Sprintf("[pageerror] %s", message))
}

// RequestFailed records a request that never completed.
func (l *ActivityLogger) RequestFailed(method, url, reason string) {
	l.line(fmt.Sprintf("[requestfailed] %s %s -> %s", method, url, reason))
}

// Response records an HTTP response, but only when the status code is in
// the 400-599 range. Everything else is dropped.
func (l *ActivityLogger) Response(status int, method, url string) {
	if status < 400 || status > 599 {
		return
	}
	l.line(fmt.Sprintf("[response:%d] %s %s", status, method, url))
}

func (l *ActivityLogger) line(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %s", l.now().Format("[15:04:05]"), msg)
	fmt.Fprintln(l.w, line)
	if l.mirror != nil {
		fmt.Fprintln(l.mirror, line)
	}
}

func (l *ActivityLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
