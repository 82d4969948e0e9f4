package executor

import (
	"sync"
	"time"
)

// Metrics tracks statistics about step execution.
type Metrics struct {
	StepsExecuted   int
	StepsSuccessful int
	StepsFailed     int
	ToolAttempts    int
	TotalRetries    int
	TotalDuration   time.Duration
	LongestStepTime time.Duration

	mu sync.Mutex
}

// Copy returns a snapshot without the mutex.
func (m *Metrics) Copy() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		StepsExecuted:   m.StepsExecuted,
		StepsSuccessful: m.StepsSuccessful,
		StepsFailed:     m.StepsFailed,
		ToolAttempts:    m.ToolAttempts,
		TotalRetries:    m.TotalRetries,
		TotalDuration:   m.TotalDuration,
		LongestStepTime: m.LongestStepTime,
	}
}

func (m *Metrics) recordStep(success bool, attempts int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StepsExecuted++
	if success {
		m.StepsSuccessful++
	} else {
		m.StepsFailed++
	}
	m.ToolAttempts += attempts
	if attempts > 1 {
		m.TotalRetries += attempts - 1
	}
	m.TotalDuration += duration
	if duration > m.LongestStepTime {
		m.LongestStepTime = duration
	}
}
