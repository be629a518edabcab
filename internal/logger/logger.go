// Package logger wraps logrus with the context-scoped helpers the rest of
// the module uses (logger.Info(ctx, msg, kv...) etc.), the way the teacher
// repo threads a *logrus.Entry through context so a job id or request id
// annotates every line without callers repeating it.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Configure sets the process-wide formatter and level.
func Configure(jsonFormat bool, level logrus.Level) {
	if jsonFormat {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	base.SetLevel(level)
}

// WithField returns a context carrying a logrus entry annotated with key=value,
// merging with any entry already present.
func WithField(ctx context.Context, key string, value any) context.Context {
	entry := entryFrom(ctx).WithField(key, value)
	return context.WithValue(ctx, ctxKey{}, entry)
}

// WithFields is the multi-key form of WithField.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	entry := entryFrom(ctx).WithFields(fields)
	return context.WithValue(ctx, ctxKey{}, entry)
}

// CloneContext returns a context whose logger entry is detached from ctx's
// deadline/cancellation, useful when continuing to log after a request
// context has been canceled (matches teacher's CloneContext usage).
func CloneContext(ctx context.Context) context.Context {
	return context.WithValue(context.Background(), ctxKey{}, entryFrom(ctx))
}

func entryFrom(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return e
		}
	}
	return logrus.NewEntry(base)
}

func kvToFields(kv []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}

// Debug logs at debug level with key-value pairs.
func Debug(ctx context.Context, msg string, kv ...any) {
	entryFrom(ctx).WithFields(kvToFields(kv)).Debug(msg)
}

// Info logs at info level with key-value pairs.
func Info(ctx context.Context, msg string, kv ...any) {
	entryFrom(ctx).WithFields(kvToFields(kv)).Info(msg)
}

// Warn logs at warn level with key-value pairs.
func Warn(ctx context.Context, msg string, kv ...any) {
	entryFrom(ctx).WithFields(kvToFields(kv)).Warn(msg)
}

// Error logs at error level with key-value pairs.
func Error(ctx context.Context, msg string, kv ...any) {
	entryFrom(ctx).WithFields(kvToFields(kv)).Error(msg)
}
