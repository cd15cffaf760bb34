package monitoring

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logf is the package-level diagnostic logger used by every lanekeep package.
// It defaults to log.Printf; the binary points it at logrus via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes logging.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewLogger builds the process logger. Debug mode uses coloured text with
// full timestamps; otherwise entries are JSON.
func NewLogger(debug bool, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	if debug {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	} else {
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}
	return l
}

// NewLogrusLogf adapts a logrus logger to the Logf signature. Messages with a
// leading "[component]" tag get it lifted into a field.
func NewLogrusLogf(l *logrus.Logger) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		entry := logrus.NewEntry(l)
		if strings.HasPrefix(format, "[") {
			if end := strings.Index(format, "] "); end > 1 {
				entry = entry.WithField("component", format[1:end])
				format = format[end+2:]
			}
		}
		if strings.HasPrefix(strings.ToLower(format), "warning") {
			entry.Warnf(format, v...)
			return
		}
		entry.Infof(format, v...)
	}
}
