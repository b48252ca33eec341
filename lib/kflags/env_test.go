package kflags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testFlag struct {
	name  string
	value string
}

func (tf *testFlag) Name() string {
	return tf.name
}

func (tf *testFlag) Set(value string) error {
	if value == "invalid" {
		return errors.New("unparsable")
	}
	tf.value = value
	return nil
}

func TestDefaultEnvRemap(t *testing.T) {
	assert.Equal(t, "", DefaultEnvRemap())
	assert.Equal(t, "SDRAND_SDR_PIPE", DefaultEnvRemap("sdrand", "sdr-pipe"))
	assert.Equal(t, "A_B_C", DefaultEnvRemap("a.b", "c"))
}

func TestEnvAugmenter(t *testing.T) {
	env := map[string]string{
		"SDRAND_SDR_PIPE":     "/tmp/fifo",
		"SDRAND_SOURCE":       "invalid",
		"OTHER_SDR_FREQUENCY": "101M",
	}
	lookup := func(name string) (string, bool) {
		value, found := env[name]
		return value, found
	}
	augmenter := NewEnvAugmenter(WithPrefixes("sdrand"), WithLookup(lookup))

	pipe := &testFlag{name: "sdr-pipe"}
	found, err := augmenter.VisitFlag(pipe)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "/tmp/fifo", pipe.value)

	frequency := &testFlag{name: "sdr-frequency", value: "92.5M"}
	found, err = augmenter.VisitFlag(frequency)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "92.5M", frequency.value)

	var usage *UsageError
	found, err = augmenter.VisitFlag(&testFlag{name: "source"})
	assert.True(t, found)
	assert.ErrorAs(t, err, &usage)
	assert.ErrorContains(t, err, "SDRAND_SOURCE")

	skip := NewEnvAugmenter(WithLookup(lookup), WithEnvMangler(func(...string) string { return "" }))
	found, err = skip.VisitFlag(pipe)
	assert.NoError(t, err)
	assert.False(t, found)
}
