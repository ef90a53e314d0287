// Package logger содержит интерфейс логгера сервиса и его реализацию на zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger — минимальный интерфейс логирования, который принимают все компоненты.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
}

// ZerologLogger реализует Logger поверх zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// Options задаёт уровень и формат вывода.
type Options struct {
	Level   string // debug | info | warn | error
	Console bool   // человекочитаемый вывод вместо JSON
	Output  io.Writer
}

// New создаёт логгер по опциям. Неизвестный уровень трактуется как info.
func New(opts Options) *ZerologLogger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	return &ZerologLogger{
		log: zerolog.New(out).Level(level).With().Timestamp().Str("service", "recommender").Logger(),
	}
}

// NewNop возвращает логгер, который ничего не пишет. Используется в тестах.
func NewNop() *ZerologLogger {
	return &ZerologLogger{log: zerolog.Nop()}
}

// With возвращает дочерний логгер с полем component.
func (l *ZerologLogger) With(component string) *ZerologLogger {
	return &ZerologLogger{log: l.log.With().Str("component", component).Logger()}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(err error, format string, args ...any) {
	l.log.Error().Err(err).Msgf(format, args...)
}
