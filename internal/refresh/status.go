package refresh

import "time"

// Status is the read-only projection served to the admin API.
type Status struct {
	Enabled        bool        `json:"enabled"`
	CronExpression string      `json:"cron_expression"`
	NextRun        *time.Time  `json:"next_run,omitempty"`
	Running        bool        `json:"running"`
	LastOutcome    *RunOutcome `json:"last_outcome,omitempty"`
}

// NextRunFunc reports the next scheduled firing time; ok is false when
// scheduling is disabled or stopped.
type NextRunFunc func() (next time.Time, ok bool)

// StatusReporter derives a Status snapshot from the scheduler and the
// orchestrator. Pure read; no side effects.
type StatusReporter struct {
	enabled bool
	expr    string
	nextRun NextRunFunc
	orch    *Orchestrator
}

// NewStatusReporter builds a reporter over the given sources. nextRun may be
// nil when scheduling is disabled.
func NewStatusReporter(enabled bool, cronExpression string, nextRun NextRunFunc, orch *Orchestrator) *StatusReporter {
	return &StatusReporter{
		enabled: enabled,
		expr:    cronExpression,
		nextRun: nextRun,
		orch:    orch,
	}
}

// Status recomputes the snapshot from current state.
func (r *StatusReporter) Status() Status {
	s := Status{
		Enabled:        r.enabled,
		CronExpression: r.expr,
		Running:        r.orch.Running(),
		LastOutcome:    r.orch.LastOutcome(),
	}
	if r.nextRun != nil {
		if next, ok := r.nextRun(); ok {
			s.NextRun = &next
		}
	}
	return s
}
