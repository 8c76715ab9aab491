package http

import (
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

func channelToProto(ch *store.Channel) proto.Channel {
	return proto.Channel{
		ID:        proto.Int64ID(ch.ID),
		Name:      ch.Name,
		Removable: ch.Removable,
	}
}

func messageToProto(msg *store.Message) proto.Message {
	return proto.Message{
		ID:        proto.Int64ID(msg.ID),
		ChannelID: proto.Int64ID(msg.ChannelID),
		Username:  msg.Username,
		Text:      msg.Body,
	}
}
