package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/resolver"
)

func TestJobs_Submit(t *testing.T) {
	js := NewJobs(New(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	id := js.Submit(ctx, []byte(roundTrip), Options{UserID: "u1"})
	// the job is detached from the submitting context.
	cancel()

	j, err := js.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if j.State != Succeeded || j.Err != nil || len(j.Result.Trades) != 1 || j.UserID != "u1" {
		t.Errorf("job = %+v", j)
	}
	if j.Finished.Before(j.Started) {
		t.Errorf("job finished at %v before it started at %v", j.Finished, j.Started)
	}
	if _, err := js.Get("nope"); !errors.Is(err, ErrNoJob) {
		t.Errorf("Get(nope) error = %v, want ErrNoJob", err)
	}
}

// stuck never answers until its context is done.
type stuck struct{}

func (stuck) Resolve(ctx context.Context, _, cusip string) (resolver.Resolution, error) {
	<-ctx.Done()
	return resolver.Resolution{CUSIP: cusip}, ctx.Err()
}

func TestJobs_Timeout(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,037833100,BUY,10,150
`
	js := NewJobs(New(WithResolver(stuck{})), 50*time.Millisecond)
	id := js.Submit(context.Background(), []byte(data), Options{})

	j, err := js.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	var terr *TimeoutError
	if j.State != Failed || !errors.As(j.Err, &terr) || terr.JobID != id {
		t.Errorf("job = %s %v, want failed with a TimeoutError", j.State, j.Err)
	}
}

func TestJobs_Cancel(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,037833100,BUY,10,150
`
	js := NewJobs(New(WithResolver(stuck{})), time.Hour)
	id := js.Submit(context.Background(), []byte(data), Options{})
	if err := js.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	j, _ := js.Wait(context.Background(), id)
	if j.State != Failed || !errors.Is(j.Err, context.Canceled) {
		t.Errorf("job = %s %v, want canceled", j.State, j.Err)
	}
}

func TestJobs_Forget(t *testing.T) {
	js := NewJobs(New(), 0)
	id := js.Submit(context.Background(), []byte(roundTrip), Options{})
	if _, err := js.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := js.Forget(id); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if _, err := js.Get(id); !errors.Is(err, ErrNoJob) {
		t.Errorf("Get() after Forget() error = %v, want ErrNoJob", err)
	}
	if err := js.Forget(id); !errors.Is(err, ErrNoJob) {
		t.Errorf("second Forget() error = %v, want ErrNoJob", err)
	}
}

func TestJobs_ForgetRunning(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,037833100,BUY,10,150
`
	js := NewJobs(New(WithResolver(stuck{})), time.Hour)
	id := js.Submit(context.Background(), []byte(data), Options{})
	js.mu.Lock()
	j := js.jobs[id]
	js.mu.Unlock()
	if err := js.Forget(id); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	select {
	case <-j.done:
	case <-time.After(time.Second):
		t.Fatal("forgotten job still running")
	}
}

func TestJobs_Retention(t *testing.T) {
	js := NewJobs(New(), 0)
	js.retention = 0
	old := js.Submit(context.Background(), []byte(roundTrip), Options{})
	if _, err := js.Wait(context.Background(), old); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	time.Sleep(time.Millisecond)
	fresh := js.Submit(context.Background(), []byte(roundTrip), Options{})
	if _, err := js.Get(old); !errors.Is(err, ErrNoJob) {
		t.Errorf("Get(old) error = %v, want ErrNoJob once retention passed", err)
	}
	if _, err := js.Wait(context.Background(), fresh); err != nil {
		t.Errorf("Wait(fresh) error = %v", err)
	}
}

func TestRun_EmitsPerSymbol(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,MSFT,BUY,1,400
2025-01-02 09:30:00,AAPL,BUY,1,150
`
	var emitted [][]tradebook.Trade
	var res Result
	err := New().run(context.Background(), []byte(data), Options{}, &res, func(trades []tradebook.Trade) {
		emitted = append(emitted, trades)
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(emitted) != 2 || emitted[0][0].Symbol != "AAPL" || emitted[1][0].Symbol != "MSFT" {
		t.Errorf("emitted = %v, want AAPL then MSFT", emitted)
	}
}
