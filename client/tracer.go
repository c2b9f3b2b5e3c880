package client

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	traceRule    = "============================================================"
	traceSubRule = "----------------------------------------"
)

// Tracer writes one human-readable file per request for debugging the
// portal's behaviour. A nil Tracer records nothing.
type Tracer struct {
	dir     string
	runID   string
	counter int
	logger  *slog.Logger
}

type traceState struct {
	LoginAttempts  int
	HasCredentials bool
	Cookies        int
}

func NewTracer(dir string, logger *slog.Logger) *Tracer {
	return &Tracer{
		dir:    dir,
		runID:  time.Now().Format("20060102.150405") + "." + uuid.NewString()[:8],
		logger: logger,
	}
}

// Dir is where trace files are written.
func (t *Tracer) Dir() string {
	return t.dir
}

func (s *Session) traceState() traceState {
	if s.tracer == nil {
		return traceState{}
	}
	return traceState{
		LoginAttempts:  s.loginAttempts,
		HasCredentials: s.creds != nil,
		Cookies:        s.cookieCount(),
	}
}

// Record writes the trace of one exchange. Failures to write are logged and
// otherwise ignored.
func (t *Tracer) Record(method, target string, opts *RequestOptions, state traceState, resp *Response, callErr error) {
	if t == nil {
		return
	}

	t.counter++
	var b bytes.Buffer

	fmt.Fprintf(&b, "%s\nTRACE #%d - %s\n%s\n", traceRule, t.counter, time.Now().Format(time.DateTime), traceRule)

	b.WriteString("CALL CONTEXT\n" + traceSubRule + "\n")
	for _, frame := range callers() {
		fmt.Fprintf(&b, "  %s:%d in %s\n", frame.File, frame.Line, frame.Function)
	}

	fmt.Fprintf(&b, "\nAuth state: %d login attempts\n", state.LoginAttempts)
	fmt.Fprintf(&b, "Has credentials: %t\n", state.HasCredentials)
	fmt.Fprintf(&b, "Session cookies count: %d\n", state.Cookies)

	writeSection(&b, "REQUEST")
	fmt.Fprintf(&b, "Method: %s\nURL: %s\n", method, target)
	writeOptions(&b, opts)

	if resp != nil {
		writeResponse(&b, resp)
	}

	if callErr != nil {
		writeSection(&b, "ERROR")
		fmt.Fprintf(&b, "Exception Type: %T\n", callErr)
		fmt.Fprintf(&b, "Exception Message: '%v'\n", callErr)
	}

	writeSection(&b, "END TRACE")

	if err := os.MkdirAll(t.dir, 0700); err != nil {
		t.logger.Debug("failed to create trace directory", "error", err)
		return
	}
	path := filepath.Join(t.dir, fmt.Sprintf("%s.%d.txt", t.runID, t.counter))
	if err := os.WriteFile(path, b.Bytes(), 0600); err != nil {
		t.logger.Debug("failed to write trace", "path", path, "error", err)
	}
}

// callers returns the three frames that led into the request, skipping the
// session plumbing itself.
func callers() []runtime.Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []runtime.Frame
	for {
		frame, more := frames.Next()
		if !isPlumbing(frame.Function) {
			out = append(out, frame)
			if len(out) == 3 {
				break
			}
		}
		if !more {
			break
		}
	}
	return out
}

func isPlumbing(function string) bool {
	for _, name := range []string{".(*Tracer).", ".(*Session).send", "runtime."} {
		if strings.Contains(function, name) {
			return true
		}
	}
	return false
}

func writeSection(b *bytes.Buffer, title string) {
	fmt.Fprintf(b, "\n%s\n%s\n%s\n", traceRule, title, traceRule)
}

func writeOptions(b *bytes.Buffer, opts *RequestOptions) {
	if opts == nil {
		return
	}
	b.WriteString("options:\n")
	if len(opts.Query) > 0 {
		fmt.Fprintf(b, "  query: %s\n", opts.Query.Encode())
	}
	if opts.Form != nil {
		fmt.Fprintf(b, "  data: %s\n", opts.Form.Encode())
	}
	if opts.JSON != nil {
		fmt.Fprintf(b, "  json: %v\n", opts.JSON)
	}
	if opts.Body != nil {
		fmt.Fprintf(b, "  body: %d bytes\n", len(opts.Body))
	}
	if len(opts.Header) > 0 {
		b.WriteString("  headers:\n")
		writeHeaders(b, opts.Header, "    ")
	}
}

func writeHeaders(b *bytes.Buffer, header http.Header, indent string) {
	keys := make([]string, 0, len(header))
	for key := range header {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(b, "%s%s: %s\n", indent, key, strings.Join(header[key], ", "))
	}
}

func writeResponse(b *bytes.Buffer, resp *Response) {
	writeSection(b, "RESPONSE")
	fmt.Fprintf(b, "Status Code: %s\n", resp.Status)
	fmt.Fprintf(b, "Final URL: %s\n", resp.URL)

	if len(resp.Redirects) > 0 {
		b.WriteString("Redirect History:\n")
		for i, hop := range resp.Redirects {
			fmt.Fprintf(b, "  %d. %d -> %s\n", i+1, hop.StatusCode, hop.URL)
		}
	}

	if req := resp.Request; req != nil {
		b.WriteString("\nActual Request Details:\n")
		fmt.Fprintf(b, "  Method: %s\n", req.Method)
		fmt.Fprintf(b, "  URL: %s\n", req.URL)
		fmt.Fprintf(b, "  Path URL: %s\n", req.URL.RequestURI())
		if len(req.Header) > 0 {
			b.WriteString("  Headers:\n")
			writeHeaders(b, req.Header, "    ")
		}
		if cookies := req.Cookies(); len(cookies) > 0 {
			b.WriteString("  Request Cookies:\n")
			for _, c := range cookies {
				fmt.Fprintf(b, "    %s=%s\n", c.Name, c.Value)
			}
		}
		if len(resp.RequestBody) > 0 {
			fmt.Fprintf(b, "  Body (%d bytes): %s\n", len(resp.RequestBody), resp.RequestBody)
		}
	}

	b.WriteString("\nResponse Headers:\n")
	writeHeaders(b, resp.Header, "  ")

	if cookies := (&http.Response{Header: resp.Header}).Cookies(); len(cookies) > 0 {
		b.WriteString("Response Cookies:\n")
		for _, c := range cookies {
			fmt.Fprintf(b, "  %s=%s\n", c.Name, c.Value)
		}
	}

	fmt.Fprintf(b, "\nContent Size: %d bytes\n", len(resp.Body))
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "unknown"
	}
	fmt.Fprintf(b, "Content Type: %s\n", contentType)
	b.WriteString("Content:\n" + traceSubRule + "\n")
	b.Write(resp.Body)
	b.WriteString("\n" + traceSubRule + "\n")
}
