package printer

import "sync"

// Submission is one recorded call to a MockBackend's Submit, kept for test
// assertions.
type Submission struct {
	Path    string
	Copies  int
}

// MockBackend is the null/mock variant of spec §4.9: it records every
// submission instead of talking to a real spooler, and its failure
// behaviour is scriptable for retry/cancel-race tests.
type MockBackend struct {
	mu          sync.Mutex
	name        string
	available   bool
	submissions []Submission
	// FailNext, when > 0, causes that many subsequent Submit calls to fail
	// before the following one succeeds.
	FailNext int
}

// NewMockBackend constructs a MockBackend that reports itself available.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{name: name, available: true}
}

func (m *MockBackend) List() ([]string, error) {
	return []string{m.name}, nil
}

func (m *MockBackend) Submit(path string, copies int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 {
		m.FailNext--
		return false, nil
	}
	m.submissions = append(m.submissions, Submission{Path: path, Copies: copies})
	return true, nil
}

func (m *MockBackend) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Name: m.name, Available: m.available}
}

// SetAvailable controls whether Status reports the backend as up, so tests
// can exercise the dispatcher's pre-submit availability check.
func (m *MockBackend) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Submissions returns a copy of every recorded successful submission, in
// call order.
func (m *MockBackend) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}
