package fake

import (
	"sync"
)

// Monitor records measures, counts and errors by metric name, without any prefix.
type Monitor struct {
	mu       sync.Mutex
	measures map[string][]float64
	counts   map[string]int
	errors   []error
}

func NewMonitor() *Monitor {
	return &Monitor{
		measures: map[string][]float64{},
		counts:   map[string]int{},
	}
}

func (m *Monitor) Measure(metric string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.measures[metric] = append(m.measures[metric], value)
}

func (m *Monitor) Count(metric string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[metric]++
}

func (m *Monitor) ReportError(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}

// TakeMeasures returns the measures recorded so far and forgets them.
func (m *Monitor) TakeMeasures() map[string][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.measures
	m.measures = map[string][]float64{}
	return result
}

// TakeCounts returns the counts recorded so far and forgets them.
func (m *Monitor) TakeCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.counts
	m.counts = map[string]int{}
	return result
}

func (m *Monitor) Errors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error{}, m.errors...)
}
