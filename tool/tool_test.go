package tool

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecRunner_CapturesStdout(t *testing.T) {
	r := NewExecRunner()
	out, _, code, err := r.Run(context.Background(), []string{"sh", "-c", "printf hello"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if string(out) != "hello" {
		t.Fatalf("stdout = %q, want hello", out)
	}
}

func TestExecRunner_NonzeroExitIsData(t *testing.T) {
	r := NewExecRunner()
	_, stderr, code, err := r.Run(context.Background(), []string{"sh", "-c", "echo boom >&2; exit 3"}, nil)
	if err != nil {
		t.Fatalf("nonzero exit must not be an error, got %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if !strings.Contains(string(stderr), "boom") {
		t.Fatalf("stderr = %q, want boom", stderr)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner()
	_, _, _, err := r.Run(context.Background(), []string{"definitely-not-a-real-binary-xyz"}, nil)
	if !IsInvocation(err) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
}

func TestExecRunner_Stdin(t *testing.T) {
	r := NewExecRunner()
	out, _, _, err := r.Run(context.Background(), []string{"cat"}, strings.NewReader("piped"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "piped" {
		t.Fatalf("stdout = %q, want piped", out)
	}
}

func TestExecRunner_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := NewExecRunner()
	_, _, _, err := r.Run(ctx, []string{"sleep", "5"}, nil)
	if !IsInvocation(err) {
		t.Fatalf("expected InvocationError on timeout, got %v", err)
	}
}

func TestFake_Script(t *testing.T) {
	f := NewFake().Script("pdftotext", FakeResult{Stdout: []byte("text"), ExitCode: 0})

	out, _, code, err := f.Run(context.Background(), []string{"/usr/bin/pdftotext", "in.pdf", "-"}, nil)
	if err != nil || code != 0 || string(out) != "text" {
		t.Fatalf("got (%q, %d, %v)", out, code, err)
	}
	if !f.CalledWith("pdftotext") {
		t.Fatal("call not recorded")
	}

	if _, _, _, err := f.Run(context.Background(), []string{"tesseract"}, nil); !IsInvocation(err) {
		t.Fatalf("unscripted binary must fail invocation, got %v", err)
	}
}
