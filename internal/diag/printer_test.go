package diag

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterAlwaysWritesNotices(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Quiet)

	p.Printf("saw %s", "note")
	p.Noticef("timed out")
	p.Warnf("do not know action %q", "explode")
	p.Failf("underlying command reported a problem: %s", "ERROR: disk")

	out := buf.String()
	assert.Contains(t, out, "saw note\n")
	assert.Contains(t, out, "timed out\n")
	assert.Contains(t, out, `warning: do not know action "explode"`)
	assert.Contains(t, out, "underlying command reported a problem: ERROR: disk")
}

func TestPrinterNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Quiet)
	p.Failf("boom")
	assert.Equal(t, "boom\n", buf.String(), "no escape sequences when not a terminal")
}

func TestPrinterDebugGating(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		level     int
		want      bool
	}{
		{"quiet hides matches", Quiet, Matches, false},
		{"matches shows matches", Matches, Matches, true},
		{"matches hides trace", Matches, Trace, false},
		{"trace shows transcript", Trace, Transcript, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := New(&buf, tt.verbosity)
			p.Debugf(tt.level, "line")
			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestPrinterClampsVerbosity(t *testing.T) {
	assert.Equal(t, Trace, New(io.Discard, 9).Verbosity())
	assert.Equal(t, Quiet, New(io.Discard, -4).Verbosity())
}

func TestPrinterWriter(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Transcript)

	_, err := p.Writer(Transcript).Write([]byte("raw output"))
	assert.NoError(t, err)
	assert.Equal(t, "raw output", buf.String())

	assert.Equal(t, io.Discard, p.Writer(Matches))
}
