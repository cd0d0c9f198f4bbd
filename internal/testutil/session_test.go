package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSessionGenerator_AlwaysSameID(t *testing.T) {
	gen := NewFixedSessionGenerator("scenario-a")
	for i := 0; i < 3; i++ {
		assert.Equal(t, "scenario-a", gen.Generate())
	}
}

func TestFixedSessionGenerator_DefaultID(t *testing.T) {
	assert.Equal(t, "test-session", NewFixedSessionGenerator("").Generate())
}

func TestFixedSessionGenerator_Concurrent(t *testing.T) {
	gen := NewFixedSessionGenerator("x")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "x", gen.Generate())
		}()
	}
	wg.Wait()
}
