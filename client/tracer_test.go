package client

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracer_WritesOneFilePerExchange(t *testing.T) {
	p := newFakePortal(t)
	p.setXML("message list", messageListXML)
	cacheDir := t.TempDir()

	traced := newTestSession(t, p, cacheDir, nil, Options{Trace: true})
	tracedHeaders, err := traced.MessageHeaders(context.Background(), MessageListOptions{})
	require.NoError(t, err)

	plain := newTestSession(t, newPortalWithMessages(t), "", nil, Options{})
	plainHeaders, err := plain.MessageHeaders(context.Background(), MessageListOptions{})
	require.NoError(t, err)
	assert.Equal(t, plainHeaders, tracedHeaders)

	files, err := filepath.Glob(filepath.Join(cacheDir, "dev_tracing", "*.txt"))
	require.NoError(t, err)
	// dispatcher (redirected to login), login post, reissued dispatcher
	require.Len(t, files, 3)

	var last string
	for _, f := range files {
		if strings.HasSuffix(f, ".3.txt") {
			data, err := os.ReadFile(f)
			require.NoError(t, err)
			last = string(data)
		}
	}
	require.NotEmpty(t, last)

	for _, want := range []string{
		"TRACE #3",
		"CALL CONTEXT",
		"Auth state: 1 login attempts",
		"Has credentials: true",
		"REQUEST",
		"Method: POST",
		"RESPONSE",
		"Status Code: 200 OK",
		"Re: LO les",
		"END TRACE",
	} {
		assert.Contains(t, last, want)
	}
}

func newPortalWithMessages(t *testing.T) *fakePortal {
	p := newFakePortal(t)
	p.setXML("message list", messageListXML)
	return p
}

func TestTracer_RecordsTransportErrors(t *testing.T) {
	dir := t.TempDir()
	tracer := NewTracer(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tracer.Record("GET", "http://portal/", nil, traceState{}, nil, io.ErrUnexpectedEOF)

	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "ERROR")
	assert.Contains(t, string(data), "Exception Message: 'unexpected EOF'")
}

func TestTracer_WriteFailureIsIgnored(t *testing.T) {
	p := newFakePortal(t)
	p.setXML("message list", messageListXML)
	s := newTestSession(t, p, "", nil, Options{})

	// a regular file where the trace directory should go
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0600))
	s.tracer = NewTracer(filepath.Join(blocked, "dev_tracing"), s.logger)

	headers, err := s.MessageHeaders(context.Background(), MessageListOptions{})
	require.NoError(t, err)
	assert.Len(t, headers, 2)
}

func TestTracer_NilIsNoop(t *testing.T) {
	var tracer *Tracer
	assert.NotPanics(t, func() {
		tracer.Record("GET", "http://portal/", nil, traceState{}, nil, nil)
	})
}
