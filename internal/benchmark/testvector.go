package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/specialistvlad/harvest/internal/command"
)

// Directory names inside a benchmark program.
const (
	SourceDirName      = "src"
	TestVectorsDirName = "test_vectors"
)

// TestCase is one recorded run of the original C program.
type TestCase struct {
	// Filename is the vector's file name inside test_vectors.
	Filename string   `json:"-"`
	Argv     []string `json:"argv"`
	Stdin    string   `json:"stdin"`
	Stdout   string   `json:"stdout"`
	RC       int      `json:"rc"`
}

// ParseBenchmarkDir checks that dir is a benchmark program and returns its
// test vector directory. The program itself is translated from dir so that
// CMakeLists.txt is visible.
func ParseBenchmarkDir(dir string) (string, error) {
	for _, sub := range []string{SourceDirName, TestVectorsDirName} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return "", fmt.Errorf("%s has no %s directory", dir, sub)
		}
	}
	return filepath.Join(dir, TestVectorsDirName), nil
}

// ParseTestVectors reads every *.json file in dir, sorted by name.
func ParseTestVectors(dir string) ([]TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading test vectors: %w", err)
	}
	var cases []TestCase
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var tc TestCase
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&tc); err != nil {
			return nil, fmt.Errorf("parsing test vector %s: %w", e.Name(), err)
		}
		tc.Filename = e.Name()
		cases = append(cases, tc)
	}
	slices.SortFunc(cases, func(a, b TestCase) int { return strings.Compare(a.Filename, b.Filename) })
	return cases, nil
}

// Check runs binary with the case's argv and stdin and compares exit code
// and stdout with the recording.
func (tc TestCase) Check(ctx context.Context, binary, dir string, timeout time.Duration) error {
	res, err := command.Run(ctx, command.Spec{
		Argv:    append([]string{binary}, tc.Argv...),
		Dir:     dir,
		Stdin:   strings.NewReader(tc.Stdin),
		Timeout: timeout,
	})
	if err != nil {
		return err
	}
	if res.TimedOut {
		return fmt.Errorf("timed out after %s", timeout)
	}
	if res.ExitCode != tc.RC {
		return fmt.Errorf("exit code %d, expected %d", res.ExitCode, tc.RC)
	}
	if got := string(res.Stdout); got != tc.Stdout {
		return fmt.Errorf("stdout mismatch: expected %q, got %q", tc.Stdout, got)
	}
	return nil
}
