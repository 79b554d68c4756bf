package tool

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// FakeResult is one scripted response of a Fake runner.
type FakeResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Err      error
	// Touch, when set, is called with the argv so the script can create
	// the output files a real engine would have written.
	Touch func(argv []string) error
}

// Fake is a scriptable Runner for tests. Responses are keyed by binary
// name; unmatched binaries fail with an InvocationError, which mirrors
// a missing executable.
type Fake struct {
	mu      sync.Mutex
	scripts map[string]FakeResult
	Calls   [][]string
}

// NewFake returns an empty fake; add behavior with Script.
func NewFake() *Fake {
	return &Fake{scripts: make(map[string]FakeResult)}
}

// Script registers the response for every invocation of the named binary.
func (f *Fake) Script(bin string, res FakeResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[bin] = res
	return f
}

func (f *Fake) Run(_ context.Context, argv []string, _ io.Reader) ([]byte, []byte, int, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, argv)
	res, ok := f.scripts[base(argv[0])]
	f.mu.Unlock()
	if !ok {
		return nil, nil, -1, &InvocationError{Tool: argv[0], Err: fmt.Errorf("no script for %q", argv[0])}
	}
	if res.Touch != nil {
		if err := res.Touch(argv); err != nil {
			return nil, nil, -1, err
		}
	}
	return res.Stdout, res.Stderr, res.ExitCode, res.Err
}

func (f *Fake) LookPath(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scripts[base(name)]; !ok {
		return &InvocationError{Tool: name, Err: fmt.Errorf("no script for %q", name)}
	}
	return nil
}

// CalledWith reports whether any recorded call used the named binary.
func (f *Fake) CalledWith(bin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, argv := range f.Calls {
		if base(argv[0]) == bin {
			return true
		}
	}
	return false
}

func base(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
