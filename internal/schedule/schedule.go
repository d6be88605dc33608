// Package schedule runs the sender's optional repeated-send cron job: the
// same file is re-sent to the same target on a cron expression, each firing
// independently completing its own handshake and Go-Back-N transfer.
package schedule

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Result records the outcome of a single scheduled send.
type Result struct {
	Status    string // "completed", "failed", "skipped"
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

// Job guards a single cron-triggered send against overlapping fires: if the
// previous run is still in flight when the schedule fires again, the new
// firing is skipped rather than queued or run concurrently.
type Job struct {
	mu         sync.Mutex
	running    bool
	lastResult *Result
}

// LastResult returns the most recently recorded outcome, or nil before the
// first firing.
func (j *Job) LastResult() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastResult
}

// Scheduler wraps a single cron.Cron running exactly one guarded Job.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	log  func(string)
}

// NewScheduler registers runFn to fire on cronExpr. log receives progress
// messages in the same style as the sender/receiver callback-adapter
// convention; it may be nil.
func NewScheduler(cronExpr string, log func(string), runFn func() error) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		job:  &Job{},
		log:  log,
	}
	if _, err := s.cron.AddFunc(cronExpr, func() { s.fire(runFn) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) logf(msg string) {
	if s.log != nil {
		s.log(msg)
	}
}

func (s *Scheduler) fire(runFn func() error) {
	j := s.job
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		s.logf("scheduled send already running, skipping this firing")
		j.mu.Lock()
		j.lastResult = &Result{Status: "skipped", Timestamp: time.Now()}
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	err := runFn()
	duration := time.Since(start)

	result := &Result{Duration: duration, Timestamp: time.Now(), Err: err}
	if err != nil {
		result.Status = "failed"
		s.logf("scheduled send failed: " + err.Error())
	} else {
		result.Status = "completed"
		s.logf("scheduled send completed")
	}

	j.mu.Lock()
	j.lastResult = result
	j.mu.Unlock()
}

// Start begins firing runFn on the configured schedule.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts future firings and waits for any in-flight run to finish, up to
// the cron library's own stop semantics (no further timeout enforced here).
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// LastResult reports the outcome of the most recent firing.
func (s *Scheduler) LastResult() *Result { return s.job.LastResult() }
