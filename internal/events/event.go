package events

import (
	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// Event is one domain occurrence bound for dispatch. Payload carries the
// typed event struct from pkg/outbox/payloads. EventID, when set, seeds
// deterministic envelope ids so upstream redelivery stays idempotent.
type Event struct {
	Kind       enums.EventKind
	EventID    string
	ActorID    uuid.UUID
	Recipients []uuid.UUID
	Payload    interface{}
}
