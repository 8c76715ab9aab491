package core

import "fmt"

// EventKind identifies a store mutation delivered by the push stream or by a resolved local write.
type EventKind int

const (
	// EventMessageCreated inserts a message unless one with the same ID exists.
	EventMessageCreated EventKind = iota
	// EventChannelCreated inserts a channel unless one with the same ID exists.
	EventChannelCreated
	// EventChannelRenamed replaces the name of an existing channel.
	EventChannelRenamed
	// EventChannelRemoved deletes a channel together with its messages.
	EventChannelRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventMessageCreated:
		return "message-created"
	case EventChannelCreated:
		return "channel-created"
	case EventChannelRenamed:
		return "channel-renamed"
	case EventChannelRemoved:
		return "channel-removed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a tagged variant: Kind selects which payload field is meaningful.
type Event struct {
	Kind EventKind
	// Message is set for EventMessageCreated.
	Message Message
	// Channel is set for EventChannelCreated and EventChannelRenamed.
	Channel Channel
	// ChannelID is set for EventChannelRemoved.
	ChannelID ID
}

// MessageCreated builds an EventMessageCreated event.
func MessageCreated(m Message) Event {
	return Event{Kind: EventMessageCreated, Message: m}
}

// ChannelCreated builds an EventChannelCreated event.
func ChannelCreated(c Channel) Event {
	return Event{Kind: EventChannelCreated, Channel: c}
}

// ChannelRenamed builds an EventChannelRenamed event. Only ID and Name of c are used.
func ChannelRenamed(c Channel) Event {
	return Event{Kind: EventChannelRenamed, Channel: c}
}

// ChannelRemoved builds an EventChannelRemoved event.
func ChannelRemoved(id ID) Event {
	return Event{Kind: EventChannelRemoved, ChannelID: id}
}
