package logging

import (
	"context"
	"html"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	adminQueueSize  = 100
	adminMaxMessage = 4000
)

// transient failures that are not worth waking the operator for
var nonCriticalPatterns = []string{
	"timeout",
	"timed out",
	"network",
	"connection reset",
	"connection refused",
	"bad gateway",
	"too many requests",
	"eof",
	"try again",
}

type adminEntry struct {
	level zapcore.Level
	text  string
}

// AdminCore forwards error entries to the operator chat.
// Entries are queued and dropped when the queue is full; Run delivers them.
type AdminCore struct {
	zapcore.LevelEnabler
	enc   zapcore.Encoder
	queue chan adminEntry
}

func NewAdminCore(level zapcore.Level) *AdminCore {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return &AdminCore{
		LevelEnabler: level,
		enc:          zapcore.NewConsoleEncoder(encCfg),
		queue:        make(chan adminEntry, adminQueueSize),
	}
}

func (c *AdminCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &AdminCore{LevelEnabler: c.LevelEnabler, enc: enc, queue: c.queue}
}

func (c *AdminCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *AdminCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(buf.String())
	buf.Free()

	if !isCritical(ent.Level, text) {
		return nil
	}
	if len([]rune(text)) > adminMaxMessage {
		text = string([]rune(text)[:adminMaxMessage]) + "\n... (сообщение обрезано)"
	}
	select {
	case c.queue <- adminEntry{level: ent.Level, text: text}:
	default:
	}
	return nil
}

func (c *AdminCore) Sync() error {
	return nil
}

// Run delivers queued entries with send until ctx is done. Delivery errors are dropped
// so that a broken chat never feeds back into the log.
func (c *AdminCore) Run(ctx context.Context, send func(ctx context.Context, text string) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-c.queue:
			_ = send(ctx, formatAdminEntry(entry))
		}
	}
}

func isCritical(level zapcore.Level, text string) bool {
	if level >= zapcore.DPanicLevel {
		return true
	}
	if level < zapcore.ErrorLevel {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range nonCriticalPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

func formatAdminEntry(e adminEntry) string {
	title := "⚠️ Ошибка"
	if e.level >= zapcore.DPanicLevel {
		title = "🔴 Критическая ошибка"
	}
	return "<b>" + title + " в боте:</b>\n\n<code>" + html.EscapeString(e.text) + "</code>"
}
