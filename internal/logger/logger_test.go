package logger

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInitWritesFilesAndErrorCopy(t *testing.T) {
	dir := t.TempDir()
	smart := t.TempDir()
	defer func() {
		log.SetOutput(os.Stderr)
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetLevel(log.InfoLevel)
	}()

	require.NoError(t, Init(Conf{Dir: dir, Level: "DEBUG", SmartDir: smart}))
	require.Equal(t, log.DebugLevel, log.GetLevel())
	log.Info("plain entry")
	log.Error("broken entry")

	internal, err := os.ReadFile(filepath.Join(dir, InternalLogFile))
	require.NoError(t, err)
	require.Contains(t, string(internal), "plain entry")
	require.Contains(t, string(internal), "broken entry")

	errs, err := os.ReadFile(filepath.Join(smart, ErrorLogFile))
	require.NoError(t, err)
	require.Contains(t, string(errs), "broken entry")
	require.NotContains(t, string(errs), "plain entry")
}

func TestWriterWithoutDir(t *testing.T) {
	w, err := Writer("", AccessLogFile, false)
	require.NoError(t, err)
	require.Equal(t, os.Stderr, w)
}
