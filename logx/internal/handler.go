// Package internal provides the record formatter behind logx.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Options configures the handler.
type Options struct {
	Format           string     // "logfmt" or "json"
	Level            slog.Level // Minimum level written
	Color            bool       // Colourise the level value (logfmt only)
	PayloadMaxBytes  int        // Truncate string values longer than this (0 = unlimited)
	SensitiveFields  []string   // Keys whose values are redacted
	DisableTimestamp bool       // Omit the time field
}

// Redacted replaces the value of every sensitive field.
const Redacted = "***REDACTED***"

// Handler writes records as logfmt or JSON with keys sorted for stable output.
type Handler struct {
	opts   Options
	mu     *sync.Mutex
	writer io.Writer
	attrs  []slog.Attr
}

// NewHandler creates a Handler writing to writer.
func NewHandler(opts Options, writer io.Writer) *Handler {
	return &Handler{
		opts:   opts,
		mu:     &sync.Mutex{},
		writer: writer,
	}
}

// LogRecord formats and writes one record.
func (h *Handler) LogRecord(level slog.Level, msg string, attrs []slog.Attr) {
	if level < h.opts.Level {
		return
	}

	all := append([]slog.Attr{}, h.attrs...)
	all = append(all, attrs...)
	all = SortAttrs(all)

	var line string
	if h.opts.Format == "json" {
		line = h.formatJSON(level, msg, all)
	} else {
		line = h.formatLogfmt(level, msg, all)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.writer, line)
}

func (h *Handler) formatLogfmt(level slog.Level, msg string, attrs []slog.Attr) string {
	var buf strings.Builder

	if !h.opts.DisableTimestamp {
		buf.WriteString("time=")
		buf.WriteString(time.Now().Format(time.RFC3339))
		buf.WriteString(" ")
	}

	levelStr := LevelString(level)
	buf.WriteString("level=")
	if h.opts.Color {
		buf.WriteString(ColorizeLevel(levelStr))
	} else {
		buf.WriteString(levelStr)
	}

	buf.WriteString(" msg=")
	buf.WriteString(fmt.Sprintf("%q", msg))

	for _, attr := range attrs {
		buf.WriteString(" ")
		buf.WriteString(attr.Key)
		buf.WriteString("=")
		buf.WriteString(FormatValue(attr.Key, attr.Value, h.opts))
	}

	buf.WriteString("\n")
	return buf.String()
}

func (h *Handler) formatJSON(level slog.Level, msg string, attrs []slog.Attr) string {
	var buf strings.Builder
	buf.WriteString("{")

	if !h.opts.DisableTimestamp {
		writeJSONField(&buf, "time", time.Now().Format(time.RFC3339))
		buf.WriteString(",")
	}
	writeJSONField(&buf, "level", LevelString(level))
	buf.WriteString(",")
	writeJSONField(&buf, "msg", msg)

	for _, attr := range attrs {
		buf.WriteString(",")
		writeJSONField(&buf, attr.Key, jsonValue(attr.Key, attr.Value, h.opts))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeJSONField(buf *strings.Builder, key string, value any) {
	k, _ := json.Marshal(key)
	v, err := json.Marshal(value)
	if err != nil {
		v, _ = json.Marshal(fmt.Sprint(value))
	}
	buf.Write(k)
	buf.WriteString(":")
	buf.Write(v)
}

func jsonValue(key string, v slog.Value, opts Options) any {
	if isSensitive(key, opts) {
		return Redacted
	}
	switch v.Kind() {
	case slog.KindString:
		return truncate(v.String(), opts)
	case slog.KindDuration:
		return v.Duration().Milliseconds()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

// Enabled reports whether the handler writes records at level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	h.LogRecord(r.Level, r.Message, attrs)
	return nil
}

// WithAttrs returns a Handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append([]slog.Attr{}, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{opts: h.opts, mu: h.mu, writer: h.writer, attrs: merged}
}

// WithGroup is a no-op: records are flat.
func (h *Handler) WithGroup(name string) slog.Handler {
	return h
}

// KVToAttrs converts alternating key-value pairs, or 2-element []any pairs from the
// core/log helpers, to attributes. A trailing key without a value is dropped.
func KVToAttrs(kv []any) []slog.Attr {
	flat := make([]any, 0, len(kv))
	for _, item := range kv {
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			flat = append(flat, pair[0], pair[1])
			continue
		}
		flat = append(flat, item)
	}

	attrs := make([]slog.Attr, 0, len(flat)/2)
	for i := 0; i < len(flat)-1; i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprintf("%v", flat[i]), flat[i+1]))
	}
	return attrs
}

// SortAttrs returns a copy of attrs sorted by key.
func SortAttrs(attrs []slog.Attr) []slog.Attr {
	sorted := make([]slog.Attr, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// FormatValue formats v for logfmt output.
func FormatValue(key string, v slog.Value, opts Options) string {
	if isSensitive(key, opts) {
		return fmt.Sprintf("%q", Redacted)
	}

	switch v.Kind() {
	case slog.KindString:
		return fmt.Sprintf("%q", truncate(v.String(), opts))
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		f := v.Float64()
		if f == float64(int64(f)) {
			return fmt.Sprintf("%.0f", f)
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", f), "0"), ".")
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return fmt.Sprintf("%d", v.Duration().Milliseconds())
	case slog.KindTime:
		return fmt.Sprintf("%q", v.Time().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%q", truncate(v.String(), opts))
	}
}

func isSensitive(key string, opts Options) bool {
	for _, field := range opts.SensitiveFields {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

func truncate(s string, opts Options) string {
	if opts.PayloadMaxBytes > 0 && len(s) > opts.PayloadMaxBytes {
		return fmt.Sprintf("%s...(truncated, %d bytes)", s[:opts.PayloadMaxBytes], len(s))
	}
	return s
}

// LevelString returns the upper-case name of level.
func LevelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}

// ColorizeLevel wraps a level name in ANSI colour codes.
func ColorizeLevel(level string) string {
	const (
		reset   = "\033[0m"
		red     = "\033[31m"
		yellow  = "\033[33m"
		cyan    = "\033[36m"
		magenta = "\033[35m"
	)

	switch level {
	case "DEBUG":
		return magenta + level + reset
	case "INFO":
		return cyan + level + reset
	case "WARN":
		return yellow + level + reset
	case "ERROR":
		return red + level + reset
	default:
		return level
	}
}
