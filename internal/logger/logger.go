// Package logger configures the process wide logrus logger and the access
// log writer.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// File names inside the configured log directories
const (
	InternalLogFile = "credtrust.log"
	AccessLogFile   = "access.log"
	ErrorLogFile    = "errors.log"
)

// Conf configures the internal logger
type Conf struct {
	Dir    string
	StdErr bool
	Level  string
	JSON   bool
	// SmartDir, if set, receives a copy of every error entry
	SmartDir string
}

// Init configures the standard logrus logger
func Init(conf Conf) error {
	level, err := log.ParseLevel(strings.ToLower(conf.Level))
	if err != nil {
		level = log.InfoLevel
		log.WithField("level", conf.Level).Warn("unknown log level, using info")
	}
	log.SetLevel(level)
	log.SetReportCaller(level >= log.DebugLevel)
	if conf.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	out, err := Writer(conf.Dir, InternalLogFile, conf.StdErr)
	if err != nil {
		return err
	}
	log.SetOutput(out)

	if conf.SmartDir != "" {
		f, err := openLogFile(conf.SmartDir, ErrorLogFile)
		if err != nil {
			return err
		}
		log.AddHook(&errorHook{out: f})
	}
	return nil
}

// Writer returns the writer for a log: the file name in dir, stderr, or
// both. Without a dir it always logs to stderr.
func Writer(dir, name string, stderr bool) (io.Writer, error) {
	if dir == "" {
		return os.Stderr, nil
	}
	f, err := openLogFile(dir, name)
	if err != nil {
		return nil, err
	}
	if stderr {
		return io.MultiWriter(os.Stderr, f), nil
	}
	return f, nil
}

// AccessWriter returns the writer for the http access log
func AccessWriter(dir string, stderr bool) (io.Writer, error) {
	return Writer(dir, AccessLogFile, stderr)
}

func openLogFile(dir, name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
}

// errorHook duplicates error level entries to a separate writer
type errorHook struct {
	out io.Writer
}

// Levels implements the log.Hook interface
func (h *errorHook) Levels() []log.Level {
	return []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
	}
}

// Fire implements the log.Hook interface
func (h *errorHook) Fire(entry *log.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}
