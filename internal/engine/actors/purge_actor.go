package actors

import (
	stdctx "context"
	"log"
	"time"

	"athemaria/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Purger permanently removes soft-deleted stories past the retention window.
type Purger interface {
	PurgeDeletedStories(ctx stdctx.Context, now time.Time) ([]string, error)
}

// Message types for PurgeActor
type (
	// RunPurgeMsg triggers one purge run evaluated at Now.
	RunPurgeMsg struct {
		Now     time.Time
		Trigger string
	}

	GetPurgeStatusMsg struct{}
)

// PurgeResult is the reply to RunPurgeMsg. Purged holds the ids removed
// before Err, if any.
type PurgeResult struct {
	Purged   []string
	Err      error
	Duration time.Duration
}

// PurgeStatus summarizes the runs handled so far.
type PurgeStatus struct {
	Runs        int       `json:"runs"`
	TotalPurged int       `json:"totalPurged"`
	LastRun     time.Time `json:"lastRun"`
	LastPurged  int       `json:"lastPurged"`
	LastError   string    `json:"lastError,omitempty"`
}

// PurgeActor serializes purge runs through its mailbox, so a scheduled run
// and an admin-triggered run never overlap.
type PurgeActor struct {
	purger  Purger
	metrics *utils.MetricsCollector
	timeout time.Duration
	status  PurgeStatus
}

func NewPurgeActor(purger Purger, metrics *utils.MetricsCollector, timeout time.Duration) actor.Actor {
	return &PurgeActor{
		purger:  purger,
		metrics: metrics,
		timeout: timeout,
	}
}

func (a *PurgeActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("PurgeActor started with PID: %v", context.Self())

	case *RunPurgeMsg:
		a.handleRunPurge(context, msg)

	case *GetPurgeStatusMsg:
		status := a.status
		context.Respond(&status)
	}
}

func (a *PurgeActor) handleRunPurge(context actor.Context, msg *RunPurgeMsg) {
	startTime := time.Now()
	now := msg.Now
	if now.IsZero() {
		now = startTime
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.timeout)
	defer cancel()

	purged, err := a.purger.PurgeDeletedStories(ctx, now)
	duration := time.Since(startTime)

	a.status.Runs++
	a.status.TotalPurged += len(purged)
	a.status.LastRun = now
	a.status.LastPurged = len(purged)
	a.status.LastError = ""
	if err != nil {
		a.status.LastError = err.Error()
		a.metrics.IncrementErrors()
		log.Printf("Purge run (%s) stopped after %d stories: %v", msg.Trigger, len(purged), err)
	} else {
		log.Printf("Purge run (%s) removed %d stories in %v", msg.Trigger, len(purged), duration)
	}
	a.metrics.AddOperationLatency("purge_deleted_stories", duration)

	if context.Sender() != nil {
		context.Respond(&PurgeResult{Purged: purged, Err: err, Duration: duration})
	}
}
