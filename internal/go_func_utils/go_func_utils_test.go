package go_func_utils

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeCall_ReturnsTrueWithoutPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	called := false
	ok := SafeCall(logger, "Test", func() { called = true })

	assert.True(t, ok)
	assert.True(t, called)
	assert.Empty(t, buf.String())
}

func TestSafeCall_SwallowsPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	assert.NotPanics(t, func() {
		ok := SafeCall(logger, "Tick", func() { panic("boom") })
		assert.False(t, ok)
	})
	assert.Contains(t, buf.String(), "Tick: recovered panic: boom")
}
