package live

import (
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/presentation"
	"gamelend/internal/modules/queue"
)

const (
	EventSnapshot     = "snapshot"
	EventResult       = "result"
	EventNotification = "notification"
	EventInvalid      = "invalid"
	EventError        = "error"
	EventPong         = "pong"
)

// Event is pushed to the browser.
type Event struct {
	Type         string                     `json:"type"`
	Queue        lifecycle.QueueKind        `json:"queue,omitempty"`
	Data         any                        `json:"data,omitempty"`
	Notification *presentation.Notification `json:"notification,omitempty"`
	Fields       map[string]string          `json:"fields,omitempty"`
	Code         string                     `json:"code,omitempty"`
	Message      string                     `json:"message,omitempty"`
}

// ClientMessage is what the browser sends: "action", "refresh" or "ping".
type ClientMessage struct {
	Type string `json:"type"`
	queue.ActionRequest
}
