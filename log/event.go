package log

import (
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

// Level names understood by the host log sink.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// event is the flat JSON document sent to the sink.
type event map[string]any

func newEvent(level slog.Level, message string) event {
	return event{
		"level":   levelName(level),
		"message": message,
	}
}

func (e event) set(key string, value any) {
	e[key] = value
}

// addAttr flattens attr into the event. Group members get "group." keys.
func (e event) addAttr(prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			e.addAttr(groupPrefix, member)
		}
		return
	}
	e[prefix+attr.Key] = attrValue(attr.Value)
}

func (e event) encode() ([]byte, error) {
	return json.Marshal(e)
}

// levelName maps slog levels to the names of the host sink.
func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return LevelDebug
	case level < slog.LevelWarn:
		return LevelInfo
	case level < slog.LevelError:
		return LevelWarning
	default:
		return LevelError
	}
}

// attrValue converts a resolved slog value to a JSON friendly value.
func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	}

	switch a := v.Any().(type) {
	case nil:
		return nil
	case error:
		return a.Error()
	case []byte:
		return string(a)
	default:
		if data, err := json.Marshal(a); err == nil {
			return json.RawMessage(data)
		}
		return v.String()
	}
}
