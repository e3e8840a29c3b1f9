package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageSentEvent fires when a direct message is created.
type MessageSentEvent struct {
	MessageID   uuid.UUID `json:"messageId"`
	SenderID    uuid.UUID `json:"senderId"`
	RecipientID uuid.UUID `json:"recipientId"`
}

// MessageReadEvent fires when a recipient reads a direct message.
type MessageReadEvent struct {
	MessageID uuid.UUID `json:"messageId"`
	ReaderID  uuid.UUID `json:"readerId"`
	SenderID  uuid.UUID `json:"senderId"`
}

// FollowCreatedEvent fires when a fan follows a creator.
type FollowCreatedEvent struct {
	FollowerID uuid.UUID `json:"followerId"`
	FollowedID uuid.UUID `json:"followedId"`
}

// PostLikedEvent fires when a post receives a like.
type PostLikedEvent struct {
	PostID   uuid.UUID `json:"postId"`
	LikerID  uuid.UUID `json:"likerId"`
	AuthorID uuid.UUID `json:"authorId"`
}

// TagRequestedEvent fires when a user is tagged in a post and has to
// approve or reject the tag.
type TagRequestedEvent struct {
	TagID        uuid.UUID `json:"tagId"`
	PostID       uuid.UUID `json:"postId"`
	ActorID      uuid.UUID `json:"actorId"`
	TaggedUserID uuid.UUID `json:"taggedUserId"`
}

// TagDecidedEvent fires when a tagged user approves or rejects a tag.
type TagDecidedEvent struct {
	TagID        uuid.UUID `json:"tagId"`
	PostID       uuid.UUID `json:"postId"`
	TaggedUserID uuid.UUID `json:"taggedUserId"`
	RequesterID  uuid.UUID `json:"requesterId"`
	Approved     bool      `json:"approved"`
}

// CreatorApplicationDecidedEvent fires when an application to become a
// creator is approved or rejected.
type CreatorApplicationDecidedEvent struct {
	UserID   uuid.UUID `json:"userId"`
	Approved bool      `json:"approved"`
	Reason   string    `json:"reason,omitempty"`
}

// ReferralEarningEvent fires when a referral generates an earning.
type ReferralEarningEvent struct {
	UserID         uuid.UUID       `json:"userId"`
	ReferredUserID uuid.UUID       `json:"referredUserId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// CampaignMessageEvent fires for each recipient of a mass-message campaign.
type CampaignMessageEvent struct {
	CampaignID  uuid.UUID `json:"campaignId"`
	AuthorID    uuid.UUID `json:"authorId"`
	RecipientID uuid.UUID `json:"recipientId"`
	Content     string    `json:"content"`
}
