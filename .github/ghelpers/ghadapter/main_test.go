package main

import (
	"bytes"
	"testing"
)

func TestWriteOutputs(t *testing.T) {
	var buffer bytes.Buffer
	if err := writeOutputs(&buffer, []byte(`{"match":false,"diffPath":"/tmp/d.png","diffAmount":0.5}`)); err != nil {
		t.Fatal(err)
	}
	if got, want := buffer.String(), "diffAmount=0.5\ndiffPath=/tmp/d.png\nmatch=false\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buffer.Reset()
	if err := writeOutputs(&buffer, []byte("not json")); err != nil || buffer.Len() != 0 {
		t.Errorf("expected non JSON output to be ignored, got %q, %v", buffer.String(), err)
	}
}
