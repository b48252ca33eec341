//go:build !windows

// Package klog provides a zap based logger.Logger, logging on the console
// and to syslog with independently configurable levels.
package klog

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"

	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/tchap/zapext/zapsyslog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

func (l *Logger) SetOutput(writer io.Writer) {
}

func Syslog(tag string, sl syslog.Priority, zl zapcore.Level) (zapcore.Core, error) {
	writer, err := syslog.New(sl|syslog.LOG_USER, tag)
	if err != nil {
		return nil, fmt.Errorf("could not initialize syslog - %w", err)
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zapsyslog.NewCore(zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl == zl }), encoder, writer), nil
}

type Flags struct {
	ConsoleLevel string
	SyslogLevel  string
	Verbosity    int
}

func DefaultFlags() *Flags {
	return &Flags{
		ConsoleLevel: "warn",
		SyslogLevel:  "info",
	}
}

func (cf *Flags) Register(flags kflags.FlagSet, prefix string) *Flags {
	flags.StringVar(&cf.ConsoleLevel, prefix+"loglevel-console", cf.ConsoleLevel, "Can be debug, info, warn, error. Minimum severity of messages to log on the console")
	flags.StringVar(&cf.SyslogLevel, prefix+"loglevel-syslog", cf.SyslogLevel, "Can be debug, info, warn, error, or none. Minimum severity of messages to log in syslog")
	flags.IntVar(&cf.Verbosity, prefix+"verbosity", cf.Verbosity, "Increases the verbosity level of logs by the specified amount")
	return cf
}

type options struct {
	minConsole zapcore.Level
	minSyslog  zapcore.Level
	noSyslog   bool
	console    zapcore.WriteSyncer
}

type Modifier func(o *options) error

type Modifiers []Modifier

func (mods Modifiers) Apply(o *options) error {
	for _, m := range mods {
		if err := m(o); err != nil {
			return err
		}
	}
	return nil
}

type Level struct {
	Name  string
	Value zapcore.Level
}

type Levels []Level

// Find returns the level whose name starts with name, so "warn" matches "warning".
func (levels Levels) Find(name string) (int, *Level) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return 0, nil
	}
	for ix, level := range levels {
		if strings.HasPrefix(level.Name, name) {
			return ix, &levels[ix]
		}
	}
	return 0, nil
}

func (levels Levels) String() string {
	keys := []string{}
	for _, key := range levels {
		keys = append(keys, key.Name)
	}
	return "[" + strings.Join(keys, ", ") + "]"
}

var DefaultLevels = Levels{
	{"debug", zapcore.DebugLevel},
	{"info", zapcore.InfoLevel},
	{"warning", zapcore.WarnLevel},
	{"error", zapcore.ErrorLevel},
}

func FromFlags(flags Flags) Modifier {
	return func(o *options) error {
		cx, cl := DefaultLevels.Find(flags.ConsoleLevel)
		if cl == nil {
			return kflags.NewUsageErrorf("invalid --loglevel-console passed - %s is unknown, valid: %s", flags.ConsoleLevel, DefaultLevels)
		}
		o.minConsole = DefaultLevels[max(0, cx-flags.Verbosity)].Value

		if strings.TrimSpace(strings.ToLower(flags.SyslogLevel)) == "none" {
			return WithoutSyslog()(o)
		}
		sx, sl := DefaultLevels.Find(flags.SyslogLevel)
		if sl == nil {
			return kflags.NewUsageErrorf("invalid --loglevel-syslog passed - %s is unknown, valid: %s or none", flags.SyslogLevel, DefaultLevels)
		}
		o.minSyslog = DefaultLevels[max(0, sx-flags.Verbosity)].Value
		return nil
	}
}

// WithConsole sends console output to the specified writer, rather than stderr.
func WithConsole(writer io.Writer) Modifier {
	return func(o *options) error {
		o.console = zapcore.AddSync(writer)
		return nil
	}
}

// WithoutSyslog disables logging to syslog.
func WithoutSyslog() Modifier {
	return func(o *options) error {
		o.noSyslog = true
		return nil
	}
}

func New(name string, mods ...Modifier) (*Logger, error) {
	options := &options{
		minConsole: zap.WarnLevel,
		minSyslog:  zap.InfoLevel,
		console:    zapcore.Lock(os.Stderr),
	}
	if err := Modifiers(mods).Apply(options); err != nil {
		return nil, err
	}

	matchConsole := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= options.minConsole
	})
	matchSyslog := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return !options.noSyslog && lvl >= options.minSyslog
	})

	console := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	tees := []zapcore.Core{
		zapcore.NewCore(console, options.console, matchConsole),
	}
	for _, level := range []struct {
		Syslog syslog.Priority
		Zap    zapcore.Level
	}{
		{Syslog: syslog.LOG_INFO, Zap: zapcore.InfoLevel},
		{Syslog: syslog.LOG_ERR, Zap: zapcore.ErrorLevel},
		{Syslog: syslog.LOG_WARNING, Zap: zapcore.WarnLevel},
		{Syslog: syslog.LOG_DEBUG, Zap: zapcore.DebugLevel},
	} {
		if !matchSyslog(level.Zap) {
			continue
		}

		// No syslog daemon is not a reason to fail: console logging still works.
		core, err := Syslog(name, level.Syslog, level.Zap)
		if err != nil {
			continue
		}
		tees = append(tees, core)
	}

	return &Logger{zap.New(zapcore.NewTee(tees...)).Sugar()}, nil
}
