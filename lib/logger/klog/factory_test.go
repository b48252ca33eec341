//go:build !windows

package klog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsFind(t *testing.T) {
	ix, level := DefaultLevels.Find("warn")
	assert.Equal(t, 2, ix)
	assert.Equal(t, "warning", level.Name)

	_, level = DefaultLevels.Find(" DEBUG ")
	assert.Equal(t, "debug", level.Name)

	_, level = DefaultLevels.Find("verbose")
	assert.Nil(t, level)
	_, level = DefaultLevels.Find("")
	assert.Nil(t, level)
}

func TestFromFlagsInvalid(t *testing.T) {
	flags := DefaultFlags()
	flags.ConsoleLevel = "loud"

	_, err := New("sdrand", FromFlags(*flags))
	var ue *kflags.UsageError
	assert.True(t, errors.As(err, &ue))
}

func TestConsoleVerbosity(t *testing.T) {
	var output bytes.Buffer

	flags := DefaultFlags()
	flags.SyslogLevel = "none"
	flags.Verbosity = 1

	log, err := New("sdrand", FromFlags(*flags), WithConsole(&output))
	require.NoError(t, err)

	var _ logger.Logger = log
	log.Debugf("not shown")
	log.Infof("reader started on %s", "/tmp/sdr.fifo")
	log.Sync()

	assert.Contains(t, output.String(), "reader started on /tmp/sdr.fifo")
	assert.NotContains(t, output.String(), "not shown")
}

func TestFromFlagsSyslogNone(t *testing.T) {
	flags := DefaultFlags()
	flags.SyslogLevel = " None"

	o := &options{}
	require.NoError(t, FromFlags(*flags)(o))
	assert.True(t, o.noSyslog)

	o = &options{}
	flags.SyslogLevel = "info"
	require.NoError(t, FromFlags(*flags)(o))
	assert.False(t, o.noSyslog)

	require.NoError(t, Modifiers{FromFlags(*flags), WithoutSyslog()}.Apply(o))
	assert.True(t, o.noSyslog)
}
