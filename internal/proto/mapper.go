package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// ErrUnknownEvent is returned by DecodeEvent for event names the client does not handle.
var ErrUnknownEvent = errors.New("unknown push event")

// ToCore converts a wire channel to the domain model.
func (c Channel) ToCore() core.Channel {
	return core.Channel{ID: core.ID(c.ID), Name: c.Name, Removable: c.Removable}
}

// ToCore converts a wire message to the domain model.
func (m Message) ToCore() core.Message {
	return core.Message{
		ID:        core.ID(m.ID),
		ChannelID: core.ID(m.ChannelID),
		Username:  m.Username,
		Text:      m.Text,
	}
}

// DecodeEvent maps a push envelope to a store event.
func DecodeEvent(push Push) (core.Event, error) {
	switch push.Event {
	case EventNewMessage:
		var m Message
		if err := json.Unmarshal(push.Data, &m); err != nil {
			return core.Event{}, fmt.Errorf("decode %s: %w", push.Event, err)
		}
		return core.MessageCreated(m.ToCore()), nil
	case EventNewChannel:
		var c Channel
		if err := json.Unmarshal(push.Data, &c); err != nil {
			return core.Event{}, fmt.Errorf("decode %s: %w", push.Event, err)
		}
		return core.ChannelCreated(c.ToCore()), nil
	case EventRenameChannel:
		var c Channel
		if err := json.Unmarshal(push.Data, &c); err != nil {
			return core.Event{}, fmt.Errorf("decode %s: %w", push.Event, err)
		}
		return core.ChannelRenamed(c.ToCore()), nil
	case EventRemoveChannel:
		var data RemoveChannelData
		if err := json.Unmarshal(push.Data, &data); err != nil {
			return core.Event{}, fmt.Errorf("decode %s: %w", push.Event, err)
		}
		return core.ChannelRemoved(core.ID(data.ID)), nil
	default:
		return core.Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, push.Event)
	}
}
