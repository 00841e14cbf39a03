package actors

import (
	"encoding/json"
	"log"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// UserPusher writes payloads to a user's open realtime connections.
type UserPusher interface {
	ConnectionCount(userID string) int
	SendToUser(userID string, payload []byte)
}

// Message types for NotificationActor
type (
	DeliverNotificationMsg struct {
		Notification *models.Notification
	}

	GetDeliveryCountsMsg struct{}
)

// DeliveryCounts tracks pushed and offline notifications.
type DeliveryCounts struct {
	Delivered int `json:"delivered"`
	Offline   int `json:"offline"`
	Failed    int `json:"failed"`
}

// NotificationEvent is the websocket payload for a new notification.
type NotificationEvent struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

// NotificationActor fans stored notifications out to connected clients.
// Users without connections read them later through the API.
type NotificationActor struct {
	pusher  UserPusher
	metrics *utils.MetricsCollector
	counts  DeliveryCounts
}

func NewNotificationActor(pusher UserPusher, metrics *utils.MetricsCollector) actor.Actor {
	return &NotificationActor{pusher: pusher, metrics: metrics}
}

func (a *NotificationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("NotificationActor started with PID: %v", context.Self())

	case *DeliverNotificationMsg:
		a.handleDeliver(msg)

	case *GetDeliveryCountsMsg:
		counts := a.counts
		context.Respond(&counts)
	}
}

func (a *NotificationActor) handleDeliver(msg *DeliverNotificationMsg) {
	startTime := time.Now()
	n := msg.Notification
	if n == nil || n.UserID == "" {
		return
	}

	if a.pusher.ConnectionCount(n.UserID) == 0 {
		a.counts.Offline++
		return
	}

	payload, err := json.Marshal(NotificationEvent{Type: "notification", Notification: n})
	if err != nil {
		a.counts.Failed++
		log.Printf("Failed to encode notification %s: %v", n.ID, err)
		return
	}
	a.pusher.SendToUser(n.UserID, payload)
	a.counts.Delivered++
	a.metrics.AddOperationLatency("deliver_notification", time.Since(startTime))
}
