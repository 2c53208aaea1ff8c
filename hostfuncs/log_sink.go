package hostfuncs

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// DefaultMaxLogSize is the default amount of guest log output kept by a LogSink (1MB).
const DefaultMaxLogSize = 1 * 1024 * 1024

// LogCapability is the call a guest log handler sends its events to.
var LogCapability = entities.NewCapability("tracing", "log")

// BoundedBuffer is a bytes.Buffer wrapper that limits the size of written data.
type BoundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	Truncated bool
}

// NewBoundedBuffer creates a new BoundedBuffer with the specified limit.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	return &BoundedBuffer{limit: limit}
}

// Write implements io.Writer. Data past the limit is discarded and Truncated
// is set; the write still reports success.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		b.Truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.Truncated = true
		_, err := b.buffer.Write(p[:remaining])
		return len(p), err
	}
	return b.buffer.Write(p)
}

// String returns the buffer contents as a string.
func (b *BoundedBuffer) String() string {
	return b.buffer.String()
}

// Len returns the current length of the buffer.
func (b *BoundedBuffer) Len() int {
	return b.buffer.Len()
}

// Reset resets the buffer and clears the Truncated flag.
func (b *BoundedBuffer) Reset() {
	b.buffer.Reset()
	b.Truncated = false
}

// LogSink collects the JSON log events a guest sends to tracing/log, one per line.
type LogSink struct {
	mu  sync.Mutex
	buf *BoundedBuffer
}

// NewLogSink creates a sink keeping at most limit bytes. A limit of zero or
// less means DefaultMaxLogSize.
func NewLogSink(limit int) *LogSink {
	if limit <= 0 {
		limit = DefaultMaxLogSize
	}
	return &LogSink{buf: NewBoundedBuffer(limit)}
}

// Handle serves tracing/log. Events are stored compacted; the reply is empty.
func (s *LogSink) Handle(_ context.Context, payload []byte) ([]byte, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return nil, NewValidationError("log event is not JSON: " + err.Error())
	}
	compact.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.buf.Write(compact.Bytes())
	return []byte{}, nil
}

// Lines returns the collected events.
func (s *LogSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := strings.TrimRight(s.buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Events returns the collected events decoded. Lines cut by the size limit are skipped.
func (s *LogSink) Events() []map[string]any {
	var events []map[string]any
	for _, line := range s.Lines() {
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err == nil {
			events = append(events, ev)
		}
	}
	return events
}

// Truncated reports whether events were dropped because of the size limit.
func (s *LogSink) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Truncated
}

// Reset drops the collected events.
func (s *LogSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
}
