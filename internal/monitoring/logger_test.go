package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerCaptures(t *testing.T) {
	prev := Logf
	defer SetLogger(prev)

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Logf("frame=%d fg=%d", 3, 17)

	if len(lines) != 1 {
		t.Fatalf("captured %d lines, want 1", len(lines))
	}
	if lines[0] != "frame=3 fg=17" {
		t.Errorf("line = %q, want 'frame=3 fg=17'", lines[0])
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	prev := Logf
	defer SetLogger(prev)

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	SetLogger(nil)

	Logf("should go nowhere")

	if called {
		t.Error("nil logger should not call the previously installed one")
	}
}

func TestLogfDefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should default to a usable logger")
	}
}
