package logger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineWriter(t *testing.T) {
	var lines []string
	lw := &LineWriter{Prefix: "[rtl_fm] ", Printer: func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}}

	n, err := lw.Write([]byte("Found 1 device(s):\nTuned to 92800000 Hz.\n"))
	assert.NoError(t, err)
	assert.Equal(t, 41, n)
	assert.Equal(t, []string{"[rtl_fm] Found 1 device(s):", "[rtl_fm] Tuned to 92800000 Hz."}, lines)
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	acc.Infof("collecting %d bytes", 20480)
	acc.Errorf("stream failed: %s", "EOF")

	assert.True(t, acc.Contains(ErrorPriority, "stream failed"))
	assert.False(t, acc.Contains(InfoPriority, "stream failed"))

	events := acc.Retrieve()
	assert.Len(t, events, 2)
	assert.Equal(t, "collecting 20480 bytes", events[0].Message)
	assert.Empty(t, acc.Retrieve())
}
