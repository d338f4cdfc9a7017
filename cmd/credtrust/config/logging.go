package config

import (
	"io"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/eduverify/credtrust/internal/logger"
)

// loggingConf is the `logging` section. Access logs the http requests,
// internal is the application log; with smart logging enabled errors are
// additionally written to their own directory.
type loggingConf struct {
	Access   LoggerConf `yaml:"access"`
	Internal struct {
		LoggerConf `yaml:",inline"`
		Level      string `yaml:"level"`
		JSON       bool   `yaml:"json"`
		Smart      struct {
			Enabled bool   `yaml:"enabled"`
			Dir     string `yaml:"dir"`
		} `yaml:"smart"`
	} `yaml:"internal"`
}

// LoggerConf is the output destination of a log; with neither set logs go
// to stderr
type LoggerConf struct {
	Dir    string `yaml:"dir"`
	StdErr bool   `yaml:"stderr"`
}

func checkLoggingDirExists(dir string) error {
	if dir != "" && !fileutils.FileExists(dir) {
		return errors.Errorf("logging directory '%s' does not exist", dir)
	}
	return nil
}

func (log *loggingConf) validate() error {
	if err := checkLoggingDirExists(log.Access.Dir); err != nil {
		return err
	}
	if err := checkLoggingDirExists(log.Internal.Dir); err != nil {
		return err
	}
	if log.Internal.Smart.Enabled {
		if log.Internal.Smart.Dir == "" {
			log.Internal.Smart.Dir = log.Internal.Dir
		}
		if log.Internal.Smart.Dir == "" {
			return errors.New("smart logging needs a directory")
		}
		if err := checkLoggingDirExists(log.Internal.Smart.Dir); err != nil {
			return err
		}
	}
	return nil
}

// LoggerConf returns the configuration of the internal logger
func (log *loggingConf) LoggerConf() logger.Conf {
	c := logger.Conf{
		Dir:    log.Internal.Dir,
		StdErr: log.Internal.StdErr,
		Level:  log.Internal.Level,
		JSON:   log.Internal.JSON,
	}
	if log.Internal.Smart.Enabled {
		c.SmartDir = log.Internal.Smart.Dir
	}
	return c
}

// AccessLog returns the writer for the http access log
func (log *loggingConf) AccessLog() (io.Writer, error) {
	return logger.AccessWriter(log.Access.Dir, log.Access.StdErr)
}

func defaultLoggingConf() loggingConf {
	var c loggingConf
	c.Internal.Level = "INFO"
	return c
}
