package downgrade

import (
	"sync"
	"time"
)

// Failure is a class that could not be lowered and was kept as it was.
type Failure struct {
	Class string `json:"class"`
	Error string `json:"error"`
}

// Report sums up one run over a jar, directory or class.
type Report struct {
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Transformed int       `json:"transformed"`
	Unchanged   int       `json:"unchanged"`
	Skipped     int       `json:"skipped"`
	Failures    []Failure `json:"failures,omitempty"`
	Resources   int       `json:"resources"`
	Replaced    int       `json:"replaced"`
	// Shims lists the runtime classes bundled into the output and Missing
	// the required ones the runtime root did not have.
	Shims    []string      `json:"shims,omitempty"`
	Missing  []string      `json:"missing_shims,omitempty"`
	Duration time.Duration `json:"duration"`

	mu sync.Mutex
}

// Failed returns the number of failed classes.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Classes returns the number of classes seen.
func (r *Report) Classes() int {
	return r.Transformed + r.Unchanged + r.Skipped + len(r.Failures)
}

func (r *Report) record(name string, o Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o {
	case Transformed:
		r.Transformed++
	case Unchanged:
		r.Unchanged++
	case Skipped:
		r.Skipped++
	case Failed:
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		r.Failures = append(r.Failures, Failure{Class: name, Error: msg})
	}
}
