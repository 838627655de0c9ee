package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverFromPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer RecoverFromPanic(42)
		panic("boom")
	})
}
