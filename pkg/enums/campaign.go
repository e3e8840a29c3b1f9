package enums

import "fmt"

// CampaignStatus maps to the campaign_status enum in Postgres.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

var validCampaignStatuses = []CampaignStatus{
	CampaignDraft,
	CampaignScheduled,
	CampaignSending,
	CampaignPaused,
	CampaignCompleted,
	CampaignCancelled,
}

// IsValid reports whether the value matches the canonical campaign_status enum.
func (s CampaignStatus) IsValid() bool {
	for _, candidate := range validCampaignStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Editable reports whether campaign content may still change in this status.
func (s CampaignStatus) Editable() bool {
	return s == CampaignDraft || s == CampaignScheduled
}

// ParseCampaignStatus converts raw input into CampaignStatus.
func ParseCampaignStatus(value string) (CampaignStatus, error) {
	for _, candidate := range validCampaignStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid campaign status %q", value)
}

// DeliveryMode maps to the campaign_delivery_mode enum in Postgres.
type DeliveryMode string

const (
	DeliveryImmediate DeliveryMode = "immediate"
	DeliveryScheduled DeliveryMode = "scheduled"
	DeliveryRecurring DeliveryMode = "recurring"
)

var validDeliveryModes = []DeliveryMode{
	DeliveryImmediate,
	DeliveryScheduled,
	DeliveryRecurring,
}

// IsValid reports whether the value matches the canonical campaign_delivery_mode enum.
func (m DeliveryMode) IsValid() bool {
	for _, candidate := range validDeliveryModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseDeliveryMode converts raw input into DeliveryMode.
func ParseDeliveryMode(value string) (DeliveryMode, error) {
	for _, candidate := range validDeliveryModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery mode %q", value)
}

// RecipientStatus maps to the campaign_recipient_status enum in Postgres.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
	RecipientSkipped RecipientStatus = "skipped"
)

var validRecipientStatuses = []RecipientStatus{
	RecipientPending,
	RecipientSent,
	RecipientFailed,
	RecipientSkipped,
}

// IsValid reports whether the value matches the canonical campaign_recipient_status enum.
func (s RecipientStatus) IsValid() bool {
	for _, candidate := range validRecipientStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
