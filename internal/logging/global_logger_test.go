package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/modelgate/internal/util"
)

func TestLogFormatter(t *testing.T) {
	f := &LogFormatter{}
	entry := &log.Entry{
		Time:    time.Date(2026, 3, 2, 10, 14, 4, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "failed to persist\n",
		Data:    log.Fields{"principal": "alice", "model": "x", "backend": "file"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-02 10:14:04] [alice   ] [warn ] failed to persist | backend=file, model=x\n", string(out))
}

func TestLogFormatter_NoPrincipal(t *testing.T) {
	f := &LogFormatter{}
	out, err := f.Format(&log.Entry{Time: time.Now(), Level: log.InfoLevel, Message: "ready", Data: log.Fields{}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out)[22:], "[--------] [info ] ready"), string(out))
}

func TestConfigureLogOutput(t *testing.T) {
	sb, err := util.NewStateBoxAt(t.TempDir())
	require.NoError(t, err)

	path, err := ConfigureLogOutput(sb, true, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.LogsDir(), "main.log"), path)

	log.Info("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")

	path, err = ConfigureLogOutput(sb, false, 0)
	require.NoError(t, err)
	assert.Empty(t, path)
}
