// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/releasegate/internal/secrets"
)

// RedactingEncoder masks credentials before entries are written. Values
// under a sensitive key are replaced whole. Other string values and the
// message keep their text with each credential cut out, so a logged argv
// such as "vsce publish -p <pat>" stays readable.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]bool
	patterns []*regexp.Regexp
	scrub    bool
}

// NewRedactingEncoder wraps base. Patterns from cfg are applied on top of
// the credential rules shared with console output.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	keys := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		keys[strings.ToLower(f)] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{Encoder: base, keys: keys, patterns: patterns, scrub: true}, nil
}

const maxPatternLen = 200

func (e *RedactingEncoder) sensitive(key string) bool {
	return e.keys[strings.ToLower(key)]
}

func (e *RedactingEncoder) clean(val string) string {
	if !e.scrub || val == "" {
		return val
	}
	val = secrets.Redact(val)
	for _, re := range e.patterns {
		val = re.ReplaceAllString(val, secrets.Placeholder)
	}
	return val
}

// AddString masks fields added through With.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		val = secrets.Placeholder
	}
	e.Encoder.AddString(key, e.clean(val))
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		val = []byte(secrets.Placeholder)
	}
	e.Encoder.AddByteString(key, []byte(e.clean(string(val))))
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, secrets.Placeholder)
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected hides the whole value under a sensitive key; nested values
// are not inspected.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, secrets.Placeholder)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, secrets.Placeholder)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, secrets.Placeholder)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry masks the message and the call-site fields, which never pass
// through the Add methods.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if !e.scrub {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	ent.Message = e.clean(ent.Message)
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case e.sensitive(f.Key):
			out[i] = zap.String(f.Key, secrets.Placeholder)
		case f.Type == zapcore.StringType:
			out[i] = zap.String(f.Key, e.clean(f.String))
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				out[i] = zap.String(f.Key, e.clean(err.Error()))
			} else {
				out[i] = f
			}
		default:
			out[i] = f
		}
	}
	return e.Encoder.EncodeEntry(ent, out)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
		scrub:    e.scrub,
	}
}
