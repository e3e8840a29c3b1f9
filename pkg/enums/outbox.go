package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateMessage  OutboxAggregateType = "message"
	AggregatePost     OutboxAggregateType = "post"
	AggregateUser     OutboxAggregateType = "user"
	AggregateTag      OutboxAggregateType = "tag"
	AggregateCampaign OutboxAggregateType = "campaign"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMessage,
	AggregatePost,
	AggregateUser,
	AggregateTag,
	AggregateCampaign,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason enum in Postgres.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts_exceeded"
	DLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	DLQReasonDecodeFailed OutboxDLQErrorReason = "decode_failed"
)

var validDLQErrorReasons = []OutboxDLQErrorReason{
	DLQReasonMaxAttempts,
	DLQReasonNonRetryable,
	DLQReasonDecodeFailed,
}

// IsValid reports whether the value matches the canonical outbox_dlq_error_reason enum.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
