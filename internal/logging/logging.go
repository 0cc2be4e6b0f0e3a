// Package logging builds the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

type Options struct {
	Level       string
	GelfEnabled bool
	GelfAddr    string
	// Out defaults to colored os.Stdout; any other writer gets plain text.
	Out io.Writer
}

// Loggers holds the main logger and a sampled one for high-rate events
// such as joystick moves.
type Loggers struct {
	Logger      zerolog.Logger
	TraceSample zerolog.Logger
	gelf        *gelf.Writer
}

func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup configures the global level and returns console (and optionally
// GELF) backed loggers. A GELF dial failure is returned; the console logger
// is still usable in that case.
func Setup(opts Options) (*Loggers, error) {
	level := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	out, noColor := opts.Out, true
	if out == nil {
		out, noColor = os.Stdout, false
	}
	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		},
	}

	var (
		gw      *gelf.Writer
		gelfErr error
	)
	if opts.GelfEnabled {
		gw, gelfErr = gelf.NewWriter(opts.GelfAddr)
		if gelfErr != nil {
			gelfErr = fmt.Errorf("graylog writer %s: %w", opts.GelfAddr, gelfErr)
		} else {
			writers = append(writers, gw)
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Str("app", "safem8").Logger()

	l := &Loggers{
		Logger: logger,
		TraceSample: logger.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
			Burst:       5,
			Period:      10 * time.Second,
			NextSampler: &zerolog.BasicSampler{N: 100},
		}),
		gelf: gw,
	}

	l.Logger.Info().Str("loglevel", level.String()).Bool("graylog", gw != nil).Msg("Logging set up")
	return l, gelfErr
}

func (l *Loggers) Close() error {
	if l.gelf == nil {
		return nil
	}
	return l.gelf.Close()
}
