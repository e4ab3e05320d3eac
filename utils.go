package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// maxLoggedBody caps how much of a request or response body is written
const maxLoggedBody = 4096

// logSink is one append-only diagnostics file with numbered entries
type logSink struct {
	mu sync.Mutex
	f  *os.File
	n  int
}

func openSink(dir, name string) (*logSink, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &logSink{f: f}, nil
}

// entry writes one entry under the sink lock. A nil sink drops it.
func (s *logSink) entry(write func(w io.Writer, n int)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	write(s.f, s.n)
}

func (s *logSink) close() {
	if s != nil {
		s.f.Close()
	}
}

func stamp() string {
	return time.Now().Format("15:04:05.000")
}

// AppLogger holds the optional diagnostics: HTTP traffic, WebSocket frames,
// ledger dumps and debug lines. Every sink is off unless configured.
type AppLogger struct {
	debug    bool
	requests *logSink
	ledger   *logSink
	frames   *logSink
}

// Global application logger (used by server)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir   string
	LogRequests bool
	LogDB       bool
	LogWS       bool
	Debug       bool
}

// NewAppLogger opens the sinks switched on in config. File sinks need an
// output directory; without one only debug logging is available.
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{debug: config.Debug}
	if config.OutputDir == "" {
		return al, nil
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	sinks := []struct {
		on   bool
		name string
		dst  **logSink
	}{
		{config.LogRequests, "requests.log", &al.requests},
		{config.LogDB, "ledger.log", &al.ledger},
		{config.LogWS, "websocket.log", &al.frames},
	}
	for _, s := range sinks {
		if !s.on {
			continue
		}
		sink, err := openSink(config.OutputDir, s.name)
		if err != nil {
			al.Close()
			return nil, err
		}
		*s.dst = sink
	}
	return al, nil
}

// InitAppLogger initializes the global application logger
func InitAppLogger(config LogConfig) error {
	var err error
	appLogger, err = NewAppLogger(config)
	return err
}

func (al *AppLogger) Close() {
	al.requests.close()
	al.ledger.close()
	al.frames.close()
}

// logsRequests reports whether HTTP traffic should be wrapped for logging
func (al *AppLogger) logsRequests() bool {
	return al != nil && al.requests != nil
}

// LogRequest records one HTTP exchange. dir is IN for requests served and
// OUT for requests the server makes.
func (al *AppLogger) LogRequest(dir, method, url string, status int, body []byte) {
	al.requests.entry(func(w io.Writer, n int) {
		fmt.Fprintf(w, "[%s] #%d %s %s %s -> %d\n", stamp(), n, dir, method, url, status)
		if len(body) > 0 {
			if len(body) > maxLoggedBody {
				body = body[:maxLoggedBody]
			}
			fmt.Fprintf(w, "%s\n", body)
		}
	})
}

// LogFrame records one WebSocket frame
func (al *AppLogger) LogFrame(direction, participant, frame string) {
	al.frames.entry(func(w io.Writer, n int) {
		fmt.Fprintf(w, "[%s] #%d %s [%s]: %s\n", stamp(), n, direction, participant, frame)
	})
}

// DumpLedger writes every row of every ledger table
func (al *AppLogger) DumpLedger(db *sqlx.DB, label string) {
	if al.ledger == nil || db == nil {
		return
	}
	var tables []string
	if err := db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`); err != nil {
		logError("DumpLedger: tables", err)
		return
	}

	var b strings.Builder
	for _, table := range tables {
		rows, err := db.Queryx("SELECT * FROM " + table)
		if err != nil {
			fmt.Fprintf(&b, "%s: %v\n", table, err)
			continue
		}
		count := 0
		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				fmt.Fprintf(&b, "%s: %v\n", table, err)
				continue
			}
			count++
			fmt.Fprintf(&b, "%s %s\n", table, formatRow(row))
		}
		rows.Close()
		if count == 0 {
			fmt.Fprintf(&b, "%s (empty)\n", table)
		}
	}

	al.ledger.entry(func(w io.Writer, n int) {
		fmt.Fprintf(w, "[%s] #%d %s\n%s\n", stamp(), n, label, b.String())
	})
}

func formatRow(row map[string]any) string {
	parts := make([]string, 0, len(row))
	for _, col := range slices.Sorted(maps.Keys(row)) {
		v := row[col]
		switch val := v.(type) {
		case nil:
			v = "NULL"
		case []byte:
			v = string(val)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", col, v))
	}
	return strings.Join(parts, " ")
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(format string, args ...any) {
	if !al.debug {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	return al.debug || al.requests != nil || al.ledger != nil || al.frames != nil
}

// ============================================================================
// HTTP Middleware
// ============================================================================

// LoggingRoundTripper logs outgoing requests. The storyteller's HTTP client
// goes through it. Headers are never logged since they carry API keys.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Logger    *AppLogger
}

func (l *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			body, _ = io.ReadAll(io.LimitReader(rc, maxLoggedBody))
			rc.Close()
		}
	}

	resp, err := l.Transport.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	l.Logger.LogRequest("OUT", req.Method, req.URL.Redacted(), status, body)
	return resp, err
}

// statusRecorder captures the status and the start of an uncompressed
// body while passing everything through
type statusRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.Header().Get("Content-Encoding") == "" {
		if room := maxLoggedBody - r.body.Len(); room > 0 {
			r.body.Write(b[:min(len(b), room)])
		}
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets the WebSocket upgrade through the recorder
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// LoggingHandler wraps http.Handler to log requests and responses
type LoggingHandler struct {
	Handler http.Handler
	Logger  *AppLogger
}

func (l *LoggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w}
	l.Handler.ServeHTTP(rec, r)
	l.Logger.LogRequest("IN", r.Method, r.URL.String(), rec.status, rec.body.Bytes())
}

// ============================================================================
// Global helper functions
// ============================================================================

// LogWSMessage logs a WebSocket frame using the global logger
func LogWSMessage(direction, participant, message string) {
	if appLogger != nil {
		appLogger.LogFrame(direction, participant, message)
	}
}

// LogDBState dumps the ledger using the global logger
func LogDBState(db *sqlx.DB, context string) {
	if appLogger != nil {
		appLogger.DumpLedger(db, context)
	}
}

// DebugLog logs a debug message using the global logger
func DebugLog(format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}

func logError(context string, err error) {
	if err != nil {
		log.Printf("ERROR [%s]: %v", context, err)
	}
}
