package envelope

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/users"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
)

// maxExcerptLen bounds free-text embedded in envelope data.
const maxExcerptLen = 100

// UserSource resolves identities, tolerating deleted users via tombstones.
type UserSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PostSource resolves posts. A soft-deleted post returns nil.
type PostSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

// MessageSource resolves direct messages.
type MessageSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Message, error)
}

// Builder renders domain events into flat per-recipient envelopes.
// Every referenced domain object is resolved to plain nested maps at
// render time so downstream stages only ever see JSON-safe data.
type Builder struct {
	users    UserSource
	posts    PostSource
	messages MessageSource
}

// NewBuilder wires the builder's lookup sources.
func NewBuilder(userSource UserSource, postSource PostSource, messageSource MessageSource) (*Builder, error) {
	if userSource == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user source required")
	}
	return &Builder{users: userSource, posts: postSource, messages: messageSource}, nil
}

// Render produces one envelope per recipient. A gone originator fails
// only the affected recipients; the rest of the batch still renders.
func (b *Builder) Render(ctx context.Context, event events.Event) ([]models.Envelope, error) {
	if !event.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid event kind %q", event.Kind))
	}
	if len(event.Recipients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event has no recipients")
	}

	data, err := b.shape(ctx, event)
	if err != nil {
		return nil, err
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	var rendered []models.Envelope
	var errs error
	now := time.Now().UTC()
	for _, recipient := range event.Recipients {
		if recipient == uuid.Nil {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required"))
			continue
		}
		payload, err := json.Marshal(data)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("marshal envelope data: %w", err))
			continue
		}
		rendered = append(rendered, models.Envelope{
			ID:          envelopeID(eventID, recipient),
			Kind:        event.Kind,
			RecipientID: recipient,
			Data:        payload,
			CreatedAt:   now,
		})
	}
	if len(rendered) == 0 && errs != nil {
		return nil, errs
	}
	return rendered, errs
}

// envelopeID derives a stable id from the event and recipient so the same
// dispatch replayed upstream inserts the same inbox row.
func envelopeID(eventID string, recipient uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventID+":"+recipient.String()))
}

func (b *Builder) shape(ctx context.Context, event events.Event) (map[string]any, error) {
	switch payload := event.Payload.(type) {
	case *payloads.MessageSentEvent:
		return b.shapeMessageSent(ctx, payload)
	case *payloads.MessageReadEvent:
		return b.shapeMessageRead(ctx, payload)
	case *payloads.FollowCreatedEvent:
		return b.shapeFollowCreated(ctx, payload)
	case *payloads.PostLikedEvent:
		return b.shapePostLiked(ctx, payload)
	case *payloads.TagRequestedEvent:
		return b.shapeTagRequested(ctx, payload)
	case *payloads.TagDecidedEvent:
		return b.shapeTagDecided(ctx, payload, event.Kind)
	case *payloads.CreatorApplicationDecidedEvent:
		return b.shapeCreatorDecided(payload, event.Kind)
	case *payloads.ReferralEarningEvent:
		return b.shapeReferralEarning(ctx, payload)
	case *payloads.CampaignMessageEvent:
		return b.shapeCampaignMessage(ctx, payload)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payload type %T", event.Payload))
	}
}

func (b *Builder) shapeMessageSent(ctx context.Context, payload *payloads.MessageSentEvent) (map[string]any, error) {
	if b.messages == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "message source required")
	}
	msg, err := b.messages.Get(ctx, payload.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "message no longer exists")
	}
	sender, err := b.users.Get(ctx, payload.SenderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":    fmt.Sprintf("New message from %s", sender.Name),
		"message_id": msg.ID.String(),
		"body":       truncate(msg.Body),
		"sender":     flattenUser(sender),
	}, nil
}

func (b *Builder) shapeMessageRead(ctx context.Context, payload *payloads.MessageReadEvent) (map[string]any, error) {
	reader, err := b.users.Get(ctx, payload.ReaderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":    fmt.Sprintf("%s read your message", reader.Name),
		"message_id": payload.MessageID.String(),
		"reader":     flattenUser(reader),
	}, nil
}

func (b *Builder) shapeFollowCreated(ctx context.Context, payload *payloads.FollowCreatedEvent) (map[string]any, error) {
	follower, err := b.users.Get(ctx, payload.FollowerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":  fmt.Sprintf("%s started following you", follower.Name),
		"follower": flattenUser(follower),
	}, nil
}

func (b *Builder) shapePostLiked(ctx context.Context, payload *payloads.PostLikedEvent) (map[string]any, error) {
	post, err := b.lookupPost(ctx, payload.PostID)
	if err != nil {
		return nil, err
	}
	liker, err := b.users.Get(ctx, payload.LikerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":      fmt.Sprintf("%s liked your post", liker.Name),
		"post_id":      post.ID.String(),
		"post_excerpt": truncate(post.Body),
		"liker":        flattenUser(liker),
	}, nil
}

func (b *Builder) shapeTagRequested(ctx context.Context, payload *payloads.TagRequestedEvent) (map[string]any, error) {
	post, err := b.lookupPost(ctx, payload.PostID)
	if err != nil {
		return nil, err
	}
	actor, err := b.users.Get(ctx, payload.ActorID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":      fmt.Sprintf("%s wants to tag you in a post", actor.Name),
		"tag_id":       payload.TagID.String(),
		"post_id":      post.ID.String(),
		"post_excerpt": truncate(post.Body),
		"actor":        flattenUser(actor),
	}, nil
}

func (b *Builder) shapeTagDecided(ctx context.Context, payload *payloads.TagDecidedEvent, kind enums.EventKind) (map[string]any, error) {
	tagged, err := b.users.Get(ctx, payload.TaggedUserID)
	if err != nil {
		return nil, err
	}
	verb := "approved"
	if kind == enums.EventTagRejected {
		verb = "rejected"
	}
	return map[string]any{
		"message":     fmt.Sprintf("%s %s your tag request", tagged.Name, verb),
		"tag_id":      payload.TagID.String(),
		"post_id":     payload.PostID.String(),
		"approved":    payload.Approved,
		"tagged_user": flattenUser(tagged),
	}, nil
}

func (b *Builder) shapeCreatorDecided(payload *payloads.CreatorApplicationDecidedEvent, kind enums.EventKind) (map[string]any, error) {
	summary := "Your creator application was approved"
	if kind == enums.EventCreatorRejected || !payload.Approved {
		summary = "Your creator application was rejected"
	}
	return map[string]any{
		"message":  summary,
		"approved": payload.Approved,
		"reason":   payload.Reason,
	}, nil
}

func (b *Builder) shapeReferralEarning(ctx context.Context, payload *payloads.ReferralEarningEvent) (map[string]any, error) {
	referred, err := b.users.Get(ctx, payload.ReferredUserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":       fmt.Sprintf("You earned %s %s from a referral", payload.Amount.String(), payload.Currency),
		"amount":        payload.Amount.String(),
		"currency":      payload.Currency,
		"referred_user": flattenUser(referred),
	}, nil
}

func (b *Builder) shapeCampaignMessage(ctx context.Context, payload *payloads.CampaignMessageEvent) (map[string]any, error) {
	author, err := b.users.Get(ctx, payload.AuthorID)
	if err != nil {
		return nil, err
	}
	if users.IsTombstone(author) {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "campaign author no longer exists")
	}
	return map[string]any{
		"message":     fmt.Sprintf("New message from %s", author.Name),
		"campaign_id": payload.CampaignID.String(),
		"body":        truncate(payload.Content),
		"author":      flattenUser(author),
	}, nil
}

func (b *Builder) lookupPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	if b.posts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "post source required")
	}
	post, err := b.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil || post.DeletedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "post no longer exists")
	}
	return post, nil
}

// flattenUser reduces a user row to the plain fields channels may show.
// Optional fields come through as null rather than being omitted.
func flattenUser(user *models.User) map[string]any {
	if user == nil {
		user = users.Tombstone(uuid.Nil)
	}
	var avatar any
	if user.Avatar != nil {
		avatar = *user.Avatar
	}
	return map[string]any{
		"id":       user.ID.String(),
		"name":     user.Name,
		"username": user.Username,
		"avatar":   avatar,
	}
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxExcerptLen {
		return text
	}
	return string(runes[:maxExcerptLen])
}
