// Package logging configures the process-wide zerolog logger from Settings.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Settings struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	WithCaller bool   `mapstructure:"with-caller" yaml:"with-caller"`
}

func DefaultSettings() Settings {
	return Settings{
		Level:  "info",
		Format: FormatText,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a logger writing to w. Text output is colored only when w is a terminal.
func NewLogger(s Settings, w io.Writer) (zerolog.Logger, error) {
	level, err := parseLevel(s.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch strings.ToLower(strings.TrimSpace(s.Format)) {
	case "", FormatText:
		cw := zerolog.NewConsoleWriter()
		cw.Out = w
		cw.TimeFormat = time.TimeOnly
		cw.NoColor = !isTerminal(w)
		out = cw
	case FormatJSON:
		out = w
	default:
		return zerolog.Nop(), errors.Errorf("unknown log format %q", s.Format)
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), nil
}

// InitLogger replaces log.Logger. When File is set, logs go there and the returned closer
// releases it; otherwise they go to stderr.
func InitLogger(s Settings) (io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if s.File != "" {
		f, err := os.OpenFile(s.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, errors.Wrapf(err, "open log file %s", s.File)
		}
		w, closer = f, f
	}

	logger, err := NewLogger(s, w)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	log.Logger = logger
	zerolog.SetGlobalLevel(logger.GetLevel())
	return closer, nil
}

// Discard silences log.Logger, used while a full-screen UI owns the terminal.
func Discard() {
	log.Logger = zerolog.Nop()
}

func parseLevel(s string) (zerolog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", s)
	}
	return level, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
