package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Zerolog adapts a zerolog.Logger to the Logger interface.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog creates a Logger writing structured JSON to w.
func NewZerolog(w io.Writer) *Zerolog {
	return &Zerolog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// NewConsole creates a Logger with human-readable console output on stderr.
func NewConsole() *Zerolog {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return &Zerolog{logger: zerolog.New(out).With().Timestamp().Logger()}
}

func (z *Zerolog) Debug(msg string, args ...any) { z.emit(z.logger.Debug(), msg, args) }
func (z *Zerolog) Info(msg string, args ...any)  { z.emit(z.logger.Info(), msg, args) }
func (z *Zerolog) Warn(msg string, args ...any)  { z.emit(z.logger.Warn(), msg, args) }
func (z *Zerolog) Error(msg string, args ...any) { z.emit(z.logger.Error(), msg, args) }

func (z *Zerolog) emit(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}
