package enums

import "fmt"

// JobStatus maps to the job_status enum in Postgres.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

var validJobStatuses = []JobStatus{
	JobPending,
	JobRunning,
	JobSucceeded,
	JobFailed,
}

// IsValid reports whether the value matches the canonical job_status enum.
func (s JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// JobKind maps to the job_kind enum in Postgres.
type JobKind string

const (
	JobAutomatedMessage   JobKind = "automated_message"
	JobFollowNotification JobKind = "follow_notification"
	JobCampaignDelivery   JobKind = "campaign_delivery"
	JobMailDelivery       JobKind = "mail_delivery"
)

var validJobKinds = []JobKind{
	JobAutomatedMessage,
	JobFollowNotification,
	JobCampaignDelivery,
	JobMailDelivery,
}

// IsValid reports whether the value matches the canonical job_kind enum.
func (k JobKind) IsValid() bool {
	for _, candidate := range validJobKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseJobKind converts raw input into JobKind.
func ParseJobKind(value string) (JobKind, error) {
	for _, candidate := range validJobKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job kind %q", value)
}
