package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"athemaria/internal/engine/actors"
	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// DefaultRequestTimeout bounds an on-demand purge request.
const DefaultRequestTimeout = 2 * time.Minute

// Engine coordinates communication between actors
type Engine struct {
	system         *actor.ActorSystem
	purgeActor     *actor.PID
	notifyActor    *actor.PID
	requestTimeout time.Duration
	now            func() time.Time
}

func NewEngine(system *actor.ActorSystem, purger actors.Purger, pusher actors.UserPusher, metrics *utils.MetricsCollector) *Engine {
	root := system.Root

	// Spawn purge actor
	purgeProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewPurgeActor(purger, metrics, DefaultRequestTimeout)
	})
	purgePID := root.Spawn(purgeProps)

	// Spawn notification actor
	notifyProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewNotificationActor(pusher, metrics)
	})
	notifyPID := root.Spawn(notifyProps)

	return &Engine{
		system:         system,
		purgeActor:     purgePID,
		notifyActor:    notifyPID,
		requestTimeout: DefaultRequestTimeout,
		now:            time.Now,
	}
}

// GetPurgeActor returns the PID of the purge actor
func (e *Engine) GetPurgeActor() *actor.PID {
	return e.purgeActor
}

// GetNotificationActor returns the PID of the notification actor
func (e *Engine) GetNotificationActor() *actor.PID {
	return e.notifyActor
}

// Notify hands a stored notification to the notification actor without
// waiting for delivery.
func (e *Engine) Notify(n *models.Notification) {
	e.system.Root.Send(e.notifyActor, &actors.DeliverNotificationMsg{Notification: n})
}

// RunPurge asks the purge actor for a run at now and waits for the result.
func (e *Engine) RunPurge(now time.Time, trigger string) ([]string, error) {
	future := e.system.Root.RequestFuture(e.purgeActor, &actors.RunPurgeMsg{Now: now, Trigger: trigger}, e.requestTimeout)
	result, err := future.Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError("purge")
	}

	res, ok := result.(*actors.PurgeResult)
	if !ok {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "unexpected purge reply", nil)
	}
	return res.Purged, res.Err
}

// PurgeStatus returns the purge actor's run counters.
func (e *Engine) PurgeStatus() (*actors.PurgeStatus, error) {
	result, err := e.system.Root.RequestFuture(e.purgeActor, &actors.GetPurgeStatusMsg{}, 5*time.Second).Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError("purge")
	}
	status, ok := result.(*actors.PurgeStatus)
	if !ok {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "unexpected purge status reply", nil)
	}
	return status, nil
}

// DeliveryCounts returns the notification actor's counters.
func (e *Engine) DeliveryCounts() (*actors.DeliveryCounts, error) {
	result, err := e.system.Root.RequestFuture(e.notifyActor, &actors.GetDeliveryCountsMsg{}, 5*time.Second).Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError("notification")
	}
	counts, ok := result.(*actors.DeliveryCounts)
	if !ok {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "unexpected delivery counts reply", nil)
	}
	return counts, nil
}

// RunPurgeSchedule triggers a purge run every interval until ctx is done.
// Failed runs are logged; the next tick runs again.
func (e *Engine) RunPurgeSchedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("purge interval must be positive, got %v", interval)
	}
	log.Printf("Purge schedule started, interval %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Purge schedule stopped")
			return nil
		case <-ticker.C:
			if _, err := e.RunPurge(e.now(), "schedule"); err != nil {
				log.Printf("Scheduled purge failed: %v", err)
			}
		}
	}
}

// Shutdown stops both actors.
func (e *Engine) Shutdown() {
	e.system.Root.Stop(e.purgeActor)
	e.system.Root.Stop(e.notifyActor)
}
