package bot

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger собирает логгер по секции log конфига.
func NewLogger(conf LogConf, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if conf.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(conf.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	switch strings.ToLower(conf.Format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", conf.Format)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
