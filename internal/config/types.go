package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a non-negative time.Duration that decodes from "3s"-style
// strings or from a bare integer number of milliseconds, the unit the
// server-side tunables are published in.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	var v time.Duration
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		v = time.Duration(ms) * time.Millisecond
	} else {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("unmarshal duration %q: %w", raw, perr)
		}
		v = parsed
	}
	if v < 0 {
		return fmt.Errorf("unmarshal duration %q: must not be negative", raw)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.Duration().String()), nil }

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

const redacted = "[REDACTED]"

// Secret is a credential read from config. Every formatting path masks it;
// only Value exposes the raw string.
type Secret string

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// MarshalText also covers encoding/json and yaml output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(strings.TrimSpace(string(text)))
	return nil
}
