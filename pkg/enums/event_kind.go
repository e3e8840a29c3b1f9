package enums

import "fmt"

// EventKind maps to the event_kind enum in Postgres and tags every
// envelope produced from a domain event.
type EventKind string

const (
	EventNewMessage      EventKind = "new_message"
	EventMessageRead     EventKind = "message_read"
	EventNewFollower     EventKind = "new_follower"
	EventNewLike         EventKind = "new_like"
	EventTagRequest      EventKind = "tag_request"
	EventTagApproved     EventKind = "tag_approved"
	EventTagRejected     EventKind = "tag_rejected"
	EventCreatorApproved EventKind = "creator_application_approved"
	EventCreatorRejected EventKind = "creator_application_rejected"
	EventReferralEarning EventKind = "referral_earning"
	EventCampaignMessage EventKind = "campaign_message"
)

var validEventKinds = []EventKind{
	EventNewMessage,
	EventMessageRead,
	EventNewFollower,
	EventNewLike,
	EventTagRequest,
	EventTagApproved,
	EventTagRejected,
	EventCreatorApproved,
	EventCreatorRejected,
	EventReferralEarning,
	EventCampaignMessage,
}

// IsValid checks whether the given kind matches the canonical enum.
func (k EventKind) IsValid() bool {
	for _, candidate := range validEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// LatencySensitive reports whether the kind must be dispatched synchronously
// in the triggering request instead of deferred to the background queue.
func (k EventKind) LatencySensitive() bool {
	return k == EventNewMessage || k == EventMessageRead
}

// ParseEventKind converts raw strings into EventKind.
func ParseEventKind(value string) (EventKind, error) {
	for _, candidate := range validEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q", value)
}
