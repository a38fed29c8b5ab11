package benchmark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Output file names. ResultsFile, SummaryFile and LogFile sit at the root
// of the benchmark output, ErrorsFile in each program's directory.
const (
	ResultsFile = "results.jsonl"
	SummaryFile = "summary.yaml"
	ErrorsFile  = "results.err"
	LogFile     = "output.log"
)

// TestResult is the outcome of one test vector.
type TestResult struct {
	Filename string `json:"filename" yaml:"filename"`
	Passed   bool   `json:"passed" yaml:"passed"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProgramResult is the evaluation of one benchmark program.
type ProgramResult struct {
	Program            string        `json:"program" yaml:"program"`
	Kind               string        `json:"kind,omitempty" yaml:"kind,omitempty"`
	TranslationSuccess bool          `json:"translation_success" yaml:"translation_success"`
	BuildSuccess       bool          `json:"build_success" yaml:"build_success"`
	TotalTests         int           `json:"total_tests" yaml:"total_tests"`
	PassedTests        int           `json:"passed_tests" yaml:"passed_tests"`
	Tests              []TestResult  `json:"tests,omitempty" yaml:"tests,omitempty"`
	Error              string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration           time.Duration `json:"duration_ns" yaml:"-"`
}

// SuccessRate is the percentage of passing tests.
func (p ProgramResult) SuccessRate() float64 {
	if p.TotalTests == 0 {
		return 0
	}
	return 100 * float64(p.PassedTests) / float64(p.TotalTests)
}

// FullyPassing reports whether every test of a program with tests passed.
func (p ProgramResult) FullyPassing() bool {
	return p.TotalTests > 0 && p.PassedTests == p.TotalTests
}

// Summary aggregates a benchmark run.
type Summary struct {
	RunID                string          `yaml:"run_id"`
	Programs             int             `yaml:"programs"`
	TranslationSuccesses int             `yaml:"translation_successes"`
	BuildSuccesses       int             `yaml:"build_successes"`
	FullyPassing         int             `yaml:"fully_passing"`
	TotalTests           int             `yaml:"total_tests"`
	PassedTests          int             `yaml:"passed_tests"`
	Failing              []string        `yaml:"failing,omitempty"`
	Results              []ProgramResult `yaml:"-"`
}

// Summarize aggregates results, which keep their order.
func Summarize(runID string, results []ProgramResult) *Summary {
	s := &Summary{RunID: runID, Programs: len(results), Results: results}
	for _, r := range results {
		if r.TranslationSuccess {
			s.TranslationSuccesses++
		}
		if r.BuildSuccess {
			s.BuildSuccesses++
		}
		if r.FullyPassing() {
			s.FullyPassing++
		} else {
			s.Failing = append(s.Failing, r.Program)
		}
		s.TotalTests += r.TotalTests
		s.PassedTests += r.PassedTests
	}
	slices.Sort(s.Failing)
	return s
}

// PassRate is the percentage of passing tests across all programs.
func (s *Summary) PassRate() float64 {
	if s.TotalTests == 0 {
		return 0
	}
	return 100 * float64(s.PassedTests) / float64(s.TotalTests)
}

func writeResults(path string, results []ProgramResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding result for %s: %w", r.Program, err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeSummary(path string, s *Summary) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

func writeErrors(path string, messages []string) error {
	return os.WriteFile(path, []byte(strings.Join(messages, "\n")+"\n"), 0o644)
}

// Progress counts finished programs. It is safe for concurrent use.
type Progress struct {
	total  atomic.Int64
	done   atomic.Int64
	passed atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Total  int64 `json:"total"`
	Done   int64 `json:"done"`
	Passed int64 `json:"passed"`
}

func (p *Progress) start(total int) {
	p.total.Store(int64(total))
}

func (p *Progress) finish(r ProgramResult) {
	p.done.Add(1)
	if r.FullyPassing() {
		p.passed.Add(1)
	}
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{Total: p.total.Load(), Done: p.done.Load(), Passed: p.passed.Load()}
}
