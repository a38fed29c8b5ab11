package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/tool"
)

// Sleeper is shared by the sleeper tools of a concurrency test. It records
// the execution time of each tool that uses it.
type Sleeper struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleeper creates a new sleeper for testing. completionChan, if non-nil,
// receives the tool name after each run and must be buffered or drained.
func NewSleeper(completionChan chan<- string, sleep time.Duration) *Sleeper {
	return &Sleeper{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Tool returns a MockTool named name that sleeps and records its timing.
func (s *Sleeper) Tool(name string) *MockTool {
	m := NewMockTool(name)
	return m.Do(func(_ context.Context, _ *tool.RunContext, inputs []ir.ID) (ir.Representation, error) {
		startTime := time.Now()
		time.Sleep(s.sleepDuration)
		endTime := time.Now()

		s.mu.Lock()
		s.ExecutionTimes[name] = &ExecutionRecord{Start: startTime, End: endTime}
		s.mu.Unlock()

		if s.completionChan != nil {
			s.completionChan <- name
		}
		return MockRepresentation{Producer: name, Inputs: inputs}, nil
	})
}

// Record returns the timing of the named tool.
func (s *Sleeper) Record(name string) (ExecutionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ExecutionTimes[name]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *r, true
}
