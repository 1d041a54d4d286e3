package hooks

import (
	"time"
)

// HookEvent defines the type of event published on the bus.
type HookEvent string

const (
	// EventSelectionChanged fires after the selected model id changes.
	EventSelectionChanged HookEvent = "selection_changed"
	// EventPolicyReconciled fires after a new policy result has been applied.
	EventPolicyReconciled HookEvent = "policy_reconciled"
	// EventPersistenceFailed fires when the selection could not be persisted.
	EventPersistenceFailed HookEvent = "persistence_failed"
	// EventConfigReloaded fires after the policy configuration was hot-reloaded.
	EventConfigReloaded HookEvent = "config_reloaded"
)

// EventContext carries the payload of one published event.
type EventContext struct {
	Event        HookEvent              `json:"event"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Principal    string                 `json:"principal,omitempty"`
	Model        string                 `json:"model,omitempty"`
	PrevModel    string                 `json:"prev_model,omitempty"`
	Payload      any                    `json:"payload,omitempty"` // any to avoid import cycles
	Error        error                  `json:"-"`
	ErrorMessage string                 `json:"error,omitempty"`
}

// Publisher is the publishing half of EventBus.
type Publisher interface {
	Publish(ctx *EventContext)
}

// AsyncPublisher is a Publisher that can also queue events without blocking.
type AsyncPublisher interface {
	Publisher
	PublishAsync(ctx *EventContext)
}
