package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/productlogik/plk/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redacted        = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
	maxPatternLen   = 200
)

func masked(n int) string { return fmt.Sprintf("[REDACTED:%d]", n) }

// Secret logs a config secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, masked(len(val.Value())))
}

// RedactedString logs an arbitrary sensitive string as its length only.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, masked(len(val)))
}

// redactor holds the compiled rules: field names matched case-insensitively
// and value patterns matched anywhere in a string.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func compileRedactor(cfg RedactionConfig) (*redactor, error) {
	r := &redactor{keys: make(map[string]struct{}, len(cfg.Fields))}
	if !cfg.Enabled {
		return r, nil
	}
	for _, k := range cfg.Fields {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern longer than %d chars: %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *redactor) sensitiveKey(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

// replacement returns what to write instead of val under key, if anything.
func (r *redactor) replacement(key, val string) (string, bool) {
	if r.sensitiveKey(key) {
		return redacted, true
	}
	for _, re := range r.patterns {
		if re.MatchString(val) {
			return redactedPattern, true
		}
	}
	return "", false
}

func (r *redactor) scrub(msg string) string {
	for _, re := range r.patterns {
		msg = re.ReplaceAllString(msg, redacted)
	}
	return msg
}

func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if f.Type == zapcore.StringType {
		if repl, ok := r.replacement(f.Key, f.String); ok {
			return zap.String(f.Key, repl)
		}
		return f
	}
	if r.sensitiveKey(f.Key) {
		return zap.String(f.Key, redacted)
	}
	return f
}

// redactingEncoder applies a redactor on both paths a field can take: the
// Add* calls made for Logger.With fields, and EncodeEntry for call-site ones.
type redactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

func (e redactingEncoder) Clone() zapcore.Encoder {
	return redactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}

func (e redactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	ent.Message = e.r.scrub(ent.Message)
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = e.r.field(f)
	}
	return e.Encoder.EncodeEntry(ent, out)
}

func (e redactingEncoder) AddString(key, val string) {
	if repl, ok := e.r.replacement(key, val); ok {
		val = repl
	}
	e.Encoder.AddString(key, val)
}

func (e redactingEncoder) AddByteString(key string, val []byte) {
	if e.r.sensitiveKey(key) {
		val = []byte(redacted)
	}
	e.Encoder.AddByteString(key, val)
}

func (e redactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e redactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}
