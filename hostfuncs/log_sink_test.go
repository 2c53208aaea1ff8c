package hostfuncs

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/ports"
	policylog "github.com/kubewarden/policy-sdk-go/log"
)

func TestBoundedBuffer(t *testing.T) {
	buf := NewBoundedBuffer(5)

	n, err := buf.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, buf.Truncated)

	n, err = buf.Write([]byte("defg"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, buf.Truncated)
	assert.Equal(t, "abcde", buf.String())

	n, err = buf.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 5, buf.Len())

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.False(t, buf.Truncated)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(0)
	reg, err := NewRegistry(WithBundle(LogBundle(sink)))
	require.NoError(t, err)

	reply, err := reg.HostCall(context.Background(), "kubewarden", "tracing", "log", []byte(`{ "level": "info", "message": "hello" }`))
	require.NoError(t, err)
	assert.Empty(t, reply)

	_, err = reg.HostCall(context.Background(), "kubewarden", "tracing", "log", []byte(`not json`))
	require.Error(t, err)

	assert.Equal(t, []string{`{"level":"info","message":"hello"}`}, sink.Lines())
	assert.Equal(t, []map[string]any{{"level": "info", "message": "hello"}}, sink.Events())

	sink.Reset()
	assert.Empty(t, sink.Lines())
}

func TestLogSink_Truncation(t *testing.T) {
	sink := NewLogSink(20)
	_, err := sink.Handle(context.Background(), []byte(`{"message":"first"}`))
	require.NoError(t, err)
	_, err = sink.Handle(context.Background(), []byte(`{"message":"second"}`))
	require.NoError(t, err)

	assert.True(t, sink.Truncated())
	require.Len(t, sink.Events(), 1)
	assert.Equal(t, "first", sink.Events()[0]["message"])
}

// hostWriter sends every line written to it to tracing/log, the way the
// guest log handler does inside a module.
type hostWriter struct {
	host ports.HostCaller
}

func (w hostWriter) Write(p []byte) (int, error) {
	_, err := w.host.HostCall(context.Background(), "kubewarden", "tracing", "log", []byte(strings.TrimSpace(string(p))))
	return len(p), err
}

func TestLogSink_ReceivesGuestEvents(t *testing.T) {
	sink := NewLogSink(0)
	reg, err := NewRegistry(WithBundle(LogBundle(sink)))
	require.NoError(t, err)

	logger := slog.New(policylog.NewHandler(policylog.WithWriter(hostWriter{host: reg})))
	logger.Warn("image not signed", "image", "nginx")

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "warning", events[0]["level"])
	assert.Equal(t, "nginx", events[0]["image"])
}
