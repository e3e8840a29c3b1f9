package events

import (
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// channelRoutes maps each event kind to its delivery channels. Read
// receipts are realtime-only; kinds a user would want to hear about
// while away also go to mail.
var channelRoutes = map[enums.EventKind][]enums.Channel{
	enums.EventNewMessage:      {enums.ChannelPersisted, enums.ChannelRealtime, enums.ChannelMail},
	enums.EventMessageRead:     {enums.ChannelRealtime},
	enums.EventNewFollower:     {enums.ChannelPersisted, enums.ChannelRealtime, enums.ChannelMail},
	enums.EventNewLike:         {enums.ChannelPersisted, enums.ChannelRealtime},
	enums.EventTagRequest:      {enums.ChannelPersisted, enums.ChannelRealtime},
	enums.EventTagApproved:     {enums.ChannelPersisted, enums.ChannelRealtime},
	enums.EventTagRejected:     {enums.ChannelPersisted, enums.ChannelRealtime},
	enums.EventCreatorApproved: {enums.ChannelPersisted, enums.ChannelRealtime, enums.ChannelMail},
	enums.EventCreatorRejected: {enums.ChannelPersisted, enums.ChannelRealtime, enums.ChannelMail},
	enums.EventReferralEarning: {enums.ChannelPersisted, enums.ChannelRealtime, enums.ChannelMail},
	enums.EventCampaignMessage: {enums.ChannelPersisted, enums.ChannelRealtime, enums.ChannelMail},
}

// postsBroadcastKinds also fan out on the shared posts channel.
var postsBroadcastKinds = map[enums.EventKind]bool{
	enums.EventNewLike: true,
}

// ChannelsFor returns the delivery channels for the given kind.
func ChannelsFor(kind enums.EventKind) []enums.Channel {
	routes, ok := channelRoutes[kind]
	if !ok {
		return []enums.Channel{enums.ChannelPersisted}
	}
	out := make([]enums.Channel, len(routes))
	copy(out, routes)
	return out
}

// BroadcastsToPosts reports whether the kind also publishes on the
// shared posts channel.
func BroadcastsToPosts(kind enums.EventKind) bool {
	return postsBroadcastKinds[kind]
}
