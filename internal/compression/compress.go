// Package compression provides compression support for snapshot payloads.
// Payloads are gzip-compressed at configurable levels.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Level represents the compression level.
type Level int

const (
	// LevelNone disables compression.
	LevelNone Level = 0
	// LevelFast uses fastest compression (gzip level 1).
	LevelFast Level = 1
	// LevelDefault uses default compression (gzip level 6).
	LevelDefault Level = 6
	// LevelMax uses maximum compression (gzip level 9).
	LevelMax Level = 9
)

// Type represents the compression algorithm.
type Type string

const (
	TypeGzip Type = "gzip"
	TypeNone Type = "none"
)

// Compressor handles payload compression.
type Compressor struct {
	Type  Type
	Level Level
}

// New creates a compressor with the specified level. Level 0 disables
// compression entirely.
func New(level Level) *Compressor {
	if level <= LevelNone {
		return &Compressor{Type: TypeNone, Level: LevelNone}
	}
	return &Compressor{Type: TypeGzip, Level: level}
}

// FromString creates a compressor from a configuration string.
// Valid values: "none", "fast", "default", "max".
func FromString(level string) (*Compressor, error) {
	switch strings.ToLower(level) {
	case "none", "0":
		return New(LevelNone), nil
	case "fast", "1":
		return New(LevelFast), nil
	case "default", "6", "":
		return New(LevelDefault), nil
	case "max", "9":
		return New(LevelMax), nil
	default:
		return nil, fmt.Errorf("invalid compression level: %s (must be none, fast, default, or max)", level)
	}
}

// IsEnabled returns true if compression is enabled.
func (c *Compressor) IsEnabled() bool {
	return c.Type != TypeNone
}

// String returns the configuration string for the compressor.
func (c *Compressor) String() string {
	switch c.Level {
	case LevelNone:
		return "none"
	case LevelFast:
		return "fast"
	case LevelDefault:
		return "default"
	case LevelMax:
		return "max"
	default:
		return fmt.Sprintf("level-%d", c.Level)
	}
}

// Compress returns the compressed form of data. With compression disabled
// the input is returned unchanged.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if !c.IsEnabled() {
		return data, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, int(c.Level))
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flush gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if !c.IsEnabled() {
		return data, nil
	}
	return Decompress(data)
}

// Decompress inflates gzip data regardless of the configured level.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}
