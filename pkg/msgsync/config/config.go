// Package config loads synchronizer configuration from YAML or JSON files
// and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before a file is decoded.
const (
	DefaultQueueSize = 10
	DefaultLogLevel  = "info"
)

// Sync describes one synchronizer.
type Sync struct {
	// Name labels logs, metrics, and spans. Optional.
	Name string `yaml:"name" json:"name"`

	// Streams lists the inputs in stream-index order.
	Streams []Stream `yaml:"streams" json:"streams"`

	// QueueSize bounds each stream queue. Default: 10.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// Slop is the largest accepted stamp spread.
	Slop Duration `yaml:"slop" json:"slop"`

	// Policy is "approximate" (default) or "exact".
	Policy string `yaml:"policy" json:"policy"`

	// Prune is "matched" (default), "arrival", or "stamp".
	Prune string `yaml:"prune" json:"prune"`

	// AllowHeaderless must be true for any stream to be headerless.
	AllowHeaderless bool `yaml:"allow_headerless" json:"allow_headerless"`

	Observability Observability `yaml:"observability" json:"observability"`
	Record        Record        `yaml:"record" json:"record"`
}

// Stream describes one input.
type Stream struct {
	Name       string `yaml:"name" json:"name"`
	Headerless bool   `yaml:"headerless" json:"headerless"`
}

// Observability toggles logging detail, metrics, and tracing.
type Observability struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	Metrics  bool   `yaml:"metrics" json:"metrics"`
	Tracing  bool   `yaml:"tracing" json:"tracing"`
}

// Level maps LogLevel to a slog.Level. Empty means info.
func (o Observability) Level() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(o.LogLevel)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level: %w %q", ErrUnknownLogLevel, o.LogLevel)
	}
}

// Record configures tuple and drop recording. An empty Path disables it.
type Record struct {
	Path string `yaml:"path" json:"path"`
}

// Default returns a Sync with defaults filled in and no streams.
func Default() Sync {
	return Sync{
		QueueSize: DefaultQueueSize,
		Observability: Observability{
			LogLevel: DefaultLogLevel,
		},
	}
}

// Sentinel validation errors.
var (
	ErrTooFewStreams    = errors.New("at least two streams are required")
	ErrInvalidQueueSize = errors.New("queue_size must be at least 1")
	ErrNegativeSlop     = errors.New("slop must not be negative")
	ErrHeaderlessDenied = errors.New("headerless stream requires allow_headerless")
	ErrUnknownLogLevel  = errors.New("unknown log level")
)

// Validate checks the configuration for errors the synchronizer would reject.
// It returns all problems joined.
func (s Sync) Validate() error {
	var errs []error
	if len(s.Streams) < 2 {
		errs = append(errs, fmt.Errorf("streams: %w (got %d)", ErrTooFewStreams, len(s.Streams)))
	}
	if s.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size: %w (got %d)", ErrInvalidQueueSize, s.QueueSize))
	}
	if s.Slop < 0 {
		errs = append(errs, fmt.Errorf("slop: %w", ErrNegativeSlop))
	}
	if !s.AllowHeaderless {
		for i, st := range s.Streams {
			if st.Headerless {
				errs = append(errs, fmt.Errorf("streams[%d]: %w", i, ErrHeaderlessDenied))
			}
		}
	}
	if _, err := s.Observability.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HeaderlessStreams returns the indexes of headerless streams.
func (s Sync) HeaderlessStreams() []int {
	var out []int
	for i, st := range s.Streams {
		if st.Headerless {
			out = append(out, i)
		}
	}
	return out
}

// StreamIndex returns the index of the stream with the given name.
func (s Sync) StreamIndex(name string) (int, bool) {
	for i, st := range s.Streams {
		if st.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Duration is a time.Duration that decodes from either a Go duration string
// ("100ms", "1m30s") or a number of seconds (0.1, 5, "0.25").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		val = strings.TrimSpace(val)
		if secs, err := strconv.ParseFloat(val, 64); err == nil {
			*d = secondsDuration(secs)
			return nil
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(val) * time.Second)
	case int64:
		*d = Duration(time.Duration(val) * time.Second)
	case float64:
		*d = secondsDuration(val)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("unsupported duration value %v (%T)", v, v)
	}
	return nil
}

func secondsDuration(secs float64) Duration {
	return Duration(time.Duration(math.Round(secs * float64(time.Second))))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
