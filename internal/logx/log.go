package logx

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var fieldRE = regexp.MustCompile(`(?i)"([^"\\]*?(token|secret|password|key|authorization)[^"\\]*)":"[^"]*"`)

// NewRedactor returns a writer that redacts token or secret values.
func NewRedactor(w io.Writer) io.Writer {
	return &redactor{w: w}
}

type redactor struct {
	w io.Writer
}

func (r *redactor) Write(p []byte) (int, error) {
	s := fieldRE.ReplaceAllStringFunc(string(p), func(m string) string {
		parts := strings.SplitN(m, ":", 2)
		if len(parts) != 2 {
			return m
		}
		return parts[0] + ":\"***redacted***\""
	})
	if _, err := r.w.Write([]byte(s)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Secret returns a placeholder for a sensitive value, preserving its length.
func Secret(val string) string {
	if val == "" {
		return ""
	}
	return fmt.Sprintf("***redacted*** (%d)", len(val))
}

// Setup installs the global logger. format "console" selects human-readable
// output; anything else writes JSON. Output always passes through the redactor.
func Setup(w io.Writer, level, format string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("log level %q: %w", level, err)
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)
	out := NewRedactor(w)
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}
