// Package logging builds the logr.Logger used by the mpcflow binaries
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

func init() {
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(1)
}

// New returns a zerolog-backed logger writing to w. format is "json" or
// "text"; "debug" enables V(1) output.
func New(w io.Writer, level, format string) (logr.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return logr.Discard(), fmt.Errorf("unknown log level %q", level)
	}

	out := w
	switch format {
	case "json":
	case "text", "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q", format)
	}

	zl := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return zerologr.New(&zl), nil
}
