package results

import "time"

// Status indicates outcome for a test or step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusPending marks a test that is known to fail and was not run.
	StatusPending Status = "pending"
)

// StepResult captures a single step execution.
type StepResult struct {
	Name      string            `json:"name"`
	Action    string            `json:"action"`
	Status    Status            `json:"status"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Duration  time.Duration     `json:"duration"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AssertionResult captures a single assertion execution.
type AssertionResult struct {
	Name     string            `json:"name"`
	Type     string            `json:"type,omitempty"`
	Status   Status            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TestResult captures a test execution summary.
type TestResult struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Status      Status            `json:"status"`
	Graph       string            `json:"graph,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Duration    time.Duration     `json:"duration"`
	Steps       []StepResult      `json:"steps"`
	Assertions  []AssertionResult `json:"assertions"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Readiness records the outcome of the store readiness gate.
type Readiness struct {
	URL       string        `json:"url"`
	Ready     bool          `json:"ready"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsed"`
	LastError string        `json:"last_error,omitempty"`
}

// RunResult captures the overall run summary.
type RunResult struct {
	RunID     string        `json:"run_id"`
	StoreURL  string        `json:"store_url,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Readiness *Readiness    `json:"readiness,omitempty"`
	Tests     []TestResult  `json:"tests"`
}

// Summary aggregates counts across a run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Pending  int           `json:"pending"`
	Duration time.Duration `json:"duration"`
}

// Summarize counts test outcomes.
func (r *RunResult) Summarize() Summary {
	summary := Summary{RunID: r.RunID, Total: len(r.Tests), Duration: r.Duration}
	for _, test := range r.Tests {
		switch test.Status {
		case StatusPassed:
			summary.Passed++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		case StatusPending:
			summary.Pending++
		}
	}
	return summary
}

// Failed reports whether the run has any failed test or never became ready.
func (r *RunResult) Failed() bool {
	if r.Readiness != nil && !r.Readiness.Ready {
		return true
	}
	for _, test := range r.Tests {
		if test.Status == StatusFailed {
			return true
		}
	}
	return false
}
