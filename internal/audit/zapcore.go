package audit

import (
	"context"
	"time"

	"go.uber.org/zap/zapcore"
)

// excludedLoggers lists the logger names that make up the system-log
// write path itself. A core built from this list never forwards its own
// writes back into system_logs — otherwise every log line would spawn
// another log line forever.
var excludedLoggers = map[string]bool{
	"store":      true,
	"audit":      true,
	"audit.core": true,
}

// DBCore is a zapcore.Core that forwards log entries into system_logs,
// skipping the write-path loggers named in excludedLoggers. Construction
// never fails: if the sink's backing store isn't ready at startup, Write
// just swallows the error and the process continues console-only (the
// console core is registered separately by the caller via zapcore.Tee).
type DBCore struct {
	zapcore.LevelEnabler
	sink *Sink
	ctx  context.Context
}

// NewDBCore wraps sink as a zapcore.Core gated by level.
func NewDBCore(sink *Sink, level zapcore.LevelEnabler) *DBCore {
	return &DBCore{LevelEnabler: level, sink: sink, ctx: context.Background()}
}

func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	return c
}

func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if excludedLoggers[ent.LoggerName] {
		return ce
	}
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *DBCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if excludedLoggers[ent.LoggerName] {
		return nil
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:    "ts",
		LevelKey:   "level",
		MessageKey: "msg",
		EncodeTime: zapcore.ISO8601TimeEncoder,
	})
	buf, err := enc.EncodeEntry(ent, fields)
	if err != nil {
		return nil // never block the caller's logging on an encode failure
	}
	raw := buf.String()
	buf.Free()

	// Best-effort: a failed write here must never surface as a logging
	// error, and must never block the caller waiting on the store.
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	_ = c.sink.AppendLog(ctx, LogLine{
		Timestamp: ent.Time,
		Level:     ent.Level.String(),
		Logger:    ent.LoggerName,
		Message:   ent.Message,
		Raw:       raw,
	})
	return nil
}

func (c *DBCore) Sync() error { return nil }
