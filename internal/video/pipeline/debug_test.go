package pipeline

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters(t *testing.T) {
	defer SetLogWriters(nil, nil, nil)

	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)

	opsf("ops message: %d", 1)
	diagf("diag message: %d", 2)
	tracef("trace message: %d", 3)

	if !strings.Contains(ops.String(), "ops message: 1") {
		t.Errorf("ops output = %q, want to contain 'ops message: 1'", ops.String())
	}
	if !strings.Contains(diag.String(), "diag message: 2") {
		t.Errorf("diag output = %q, want to contain 'diag message: 2'", diag.String())
	}
	if !strings.Contains(trace.String(), "trace message: 3") {
		t.Errorf("trace output = %q, want to contain 'trace message: 3'", trace.String())
	}

	if !strings.Contains(ops.String(), "[pipeline] ") {
		t.Errorf("ops output = %q, want the [pipeline] prefix", ops.String())
	}
}

func TestSetLogWritersDisabled(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(&buf, nil, nil)
	SetLogWriters(nil, nil, nil)

	opsf("should not appear")
	diagf("should not appear")
	tracef("should not appear")

	if buf.Len() > 0 {
		t.Errorf("output after disabling = %q, want empty", buf.String())
	}
}
