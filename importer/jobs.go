package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/tradebook"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout is the time after which a running job is failed.
const DefaultTimeout = 10 * time.Minute

// DefaultRetention is how long an ended job stays available to Get.
const DefaultRetention = time.Hour

// ErrNoJob is returned for unknown job ids.
var ErrNoJob = errors.New("no such job")

// TimeoutError fails a job that ran for too long. The trades reconstructed
// before the timeout stay in the job result, nothing is rolled back.
type TimeoutError struct {
	JobID string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("import job %s timed out after %v", e.JobID, e.After)
}

// State is the state of a job.
type State string

const (
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// Job is a snapshot of an import job.
type Job struct {
	ID       string
	UserID   string
	State    State
	Started  time.Time
	Finished time.Time
	Result   Result // partial while running or after a timeout
	Err      error
}

// job is the live state of a Job.
type job struct {
	Job
	done   chan struct{}
	cancel context.CancelFunc
}

// Jobs runs imports in the background, detached from the caller's context.
//
// Ended jobs are dropped after a retention window, or by Forget.
type Jobs struct {
	im        *Importer
	timeout   time.Duration
	retention time.Duration
	log       *zap.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// NewJobs returns a job runner of 'im'. A zero timeout is DefaultTimeout.
func NewJobs(im *Importer, timeout time.Duration) *Jobs {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Jobs{im: im, timeout: timeout, retention: DefaultRetention, log: im.log, jobs: make(map[string]*job)}
}

// Submit starts importing 'data' and returns the job id immediately. The job
// outlives the cancellation of ctx but keeps its values.
func (js *Jobs) Submit(ctx context.Context, data []byte, opts Options) string {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{
		Job:    Job{ID: uuid.NewString(), UserID: opts.UserID, State: Running, Started: time.Now()},
		done:   make(chan struct{}),
		cancel: cancel,
	}
	js.mu.Lock()
	js.prune(j.Started)
	js.jobs[j.ID] = j
	js.mu.Unlock()
	log := js.log.With(zap.String("job", j.ID))
	log.Info("import job submitted", zap.String("user", opts.UserID), zap.Int("bytes", len(data)))

	watchdog := time.AfterFunc(js.timeout, func() {
		if js.finish(j, &TimeoutError{JobID: j.ID, After: js.timeout}) {
			log.Error("import job timed out", zap.Duration("after", js.timeout))
		}
		cancel()
	})

	go func() {
		defer cancel()
		defer watchdog.Stop()
		var res Result
		err := js.im.run(ctx, data, opts, &res, func(trades []tradebook.Trade) {
			js.mu.Lock()
			defer js.mu.Unlock()
			if j.State == Running {
				j.Result.Trades = append(j.Result.Trades, trades...)
			}
		})
		js.mu.Lock()
		if j.State == Running {
			// the complete result, failures and unresolved identifiers included.
			j.Result = res
		}
		js.mu.Unlock()
		if js.finish(j, err) {
			log.Info("import job finished", zap.Int("trades", len(res.Trades)), zap.Error(err))
		}
	}()
	return j.ID
}

// finish ends a running job, it returns false if it was already ended.
func (js *Jobs) finish(j *job, err error) bool {
	js.mu.Lock()
	defer js.mu.Unlock()
	if j.State != Running {
		return false
	}
	j.State, j.Err, j.Finished = Succeeded, err, time.Now()
	if err != nil {
		j.State = Failed
	}
	close(j.done)
	return true
}

// prune drops the jobs ended for longer than the retention window. js.mu
// must be held.
func (js *Jobs) prune(now time.Time) {
	for id, j := range js.jobs {
		if j.State != Running && now.Sub(j.Finished) > js.retention {
			delete(js.jobs, id)
		}
	}
}

// Get returns a snapshot of the job 'id'.
func (js *Jobs) Get(id string) (Job, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	j, ok := js.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w %q", ErrNoJob, id)
	}
	snapshot := j.Job
	snapshot.Result.Trades = append([]tradebook.Trade(nil), j.Result.Trades...)
	return snapshot, nil
}

// Wait waits for the job 'id' to end, or for ctx to be done.
func (js *Jobs) Wait(ctx context.Context, id string) (Job, error) {
	js.mu.Lock()
	j, ok := js.jobs[id]
	js.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("%w %q", ErrNoJob, id)
	}
	select {
	case <-j.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	return js.Get(id)
}

// Cancel fails the job 'id' with context.Canceled.
func (js *Jobs) Cancel(id string) error {
	js.mu.Lock()
	j, ok := js.jobs[id]
	js.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrNoJob, id)
	}
	js.finish(j, context.Canceled)
	j.cancel()
	return nil
}

// Forget drops the job 'id', cancelling it if it is still running.
func (js *Jobs) Forget(id string) error {
	js.mu.Lock()
	j, ok := js.jobs[id]
	delete(js.jobs, id)
	js.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrNoJob, id)
	}
	js.finish(j, context.Canceled)
	j.cancel()
	return nil
}

