package logger

import (
	"bufio"
	"io"
	"strings"
)

// Logger is the interface used by all the sdrand libraries to log messages.
//
// *zap.SugaredLogger (wrapped by klog) and logrus can be used out of the box.
// DefaultLogger can be used to pass an arbitrary Printf-like function.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})

	SetOutput(writer io.Writer)
}

// Printer is a Printf like function.
type Printer func(format string, args ...interface{})

// LogLines breaks a buffer into lines and logs each one of them with the
// specified prefix and printer.
func LogLines(logger Printer, buffer, prefix string) {
	scanner := bufio.NewScanner(strings.NewReader(buffer))
	for scanner.Scan() {
		logger("%s", prefix+scanner.Text())
	}
}

// LineWriter is an io.Writer logging each line written to it.
//
// Use it to forward the output of a subprocess to a logger, like:
//
//	cmd.Stderr = &logger.LineWriter{Prefix: "[rtl_fm] ", Printer: log.Infof}
type LineWriter struct {
	Prefix  string
	Printer Printer
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	LogLines(lw.Printer, string(p), lw.Prefix)
	return len(p), nil
}

// DefaultLogger implements the Logger interface.
//
// Printer must be provided. Use log.Printf to rely on default golang logging, with:
//
//	logger := &DefaultLogger{Printer: log.Printf}
type DefaultLogger struct {
	Printer Printer
	Setter  func(writer io.Writer)
}

func (dl DefaultLogger) Debugf(format string, args ...interface{}) {
	dl.Printer("[debug] "+format, args...)
}
func (dl DefaultLogger) Infof(format string, args ...interface{}) {
	dl.Printer("[info] "+format, args...)
}
func (dl DefaultLogger) Errorf(format string, args ...interface{}) {
	dl.Printer("[error] "+format, args...)
}
func (dl DefaultLogger) Warnf(format string, args ...interface{}) {
	dl.Printer("[warning] "+format, args...)
}

func (dl DefaultLogger) SetOutput(output io.Writer) {
	if dl.Setter != nil {
		dl.Setter(output)
	}
}

// Nil is a pre-defined logger that will discard all the output.
var Nil Logger = &NilLogger{}

// NilLogger is a logger that discards all messages.
//
// Prefer using logger.Nil to instantiating your copy of &NilLogger{}.
type NilLogger struct{}

func (dl NilLogger) Debugf(format string, args ...interface{}) {}
func (dl NilLogger) Infof(format string, args ...interface{})  {}
func (dl NilLogger) Errorf(format string, args ...interface{}) {}
func (dl NilLogger) Warnf(format string, args ...interface{})  {}
func (dl NilLogger) SetOutput(output io.Writer)                {}
