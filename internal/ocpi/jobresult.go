package ocpi

import "fmt"

// JobResult accumulates the outcome of one batch job run. Every job in the
// engine shares the same policy: a failed item is recorded and the run
// continues with the next item.
type JobResult struct {
	Success int      `json:"success"`
	Failure int      `json:"failure"`
	Total   int      `json:"total"`
	Logs    []string `json:"logs,omitempty"`

	ObjectIDsInSuccess []string `json:"objectIDsInSuccess,omitempty"`
	ObjectIDsInFailure []string `json:"objectIDsInFailure,omitempty"`
}

func NewJobResult() *JobResult { return &JobResult{} }

func (r *JobResult) RecordSuccess(id string) {
	r.Success++
	r.Total++
	if id != "" {
		r.ObjectIDsInSuccess = append(r.ObjectIDsInSuccess, id)
	}
}

func (r *JobResult) RecordFailure(id string, err error) {
	r.Failure++
	r.Total++
	if id != "" {
		r.ObjectIDsInFailure = append(r.ObjectIDsInFailure, id)
	}
	if err != nil {
		r.Logs = append(r.Logs, fmt.Sprintf("%s: %v", id, err))
	}
}

// RecordSkip counts an item that was considered but neither pushed nor
// failed, e.g. a transaction that has not stopped yet.
func (r *JobResult) RecordSkip() { r.Total++ }

func (r *JobResult) Logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}
