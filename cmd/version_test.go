package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintVersion(t *testing.T) {
	old := version
	version = "v1.2.3"
	t.Cleanup(func() { version = old })

	var buf bytes.Buffer
	printVersion(&buf)

	out := buf.String()
	if !strings.Contains(out, "cv-matcher version: v1.2.3") {
		t.Fatalf("unexpected version line: %q", out)
	}
	if !strings.Contains(out, "scorer backends: tfidf, http, gemini, openai") {
		t.Fatalf("unexpected backends line: %q", out)
	}
}
