package enums

import "fmt"

// Channel maps to the delivery_channel enum in Postgres.
type Channel string

const (
	ChannelPersisted Channel = "persisted"
	ChannelRealtime  Channel = "realtime"
	ChannelMail      Channel = "mail"
)

var validChannels = []Channel{
	ChannelPersisted,
	ChannelRealtime,
	ChannelMail,
}

// IsValid reports whether the value matches the canonical delivery_channel enum.
func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChannel converts raw input into Channel.
func ParseChannel(value string) (Channel, error) {
	for _, candidate := range validChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery channel %q", value)
}

// DeliveryStatus maps to the delivery_status enum in Postgres.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryPending,
	DeliverySent,
	DeliveryFailed,
}

// IsValid reports whether the value matches the canonical delivery_status enum.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
