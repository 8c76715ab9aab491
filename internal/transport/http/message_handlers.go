package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

const messageHistoryLimit = 1000

// MessageHandlers provides HTTP handlers for message endpoints.
type MessageHandlers struct {
	store       store.Store
	broadcaster *Broadcaster
	log         *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, broadcaster *Broadcaster, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:       st,
		broadcaster: broadcaster,
		log:         logger,
	}
}

// ListMessages handles GET /api/v1/messages.
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	messages, err := h.store.ListMessages(c.Request.Context(), messageHistoryLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messageToProto(msg))
	}
	c.JSON(http.StatusOK, response)
}

// SendMessage handles POST /api/v1/messages.
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, proto.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req proto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "text is required"})
		return
	}
	channelID, err := req.ChannelID.Int64()
	if err != nil {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid channelId"})
		return
	}

	msg := &store.Message{ChannelID: channelID, UserID: userID, Body: req.Text}
	if err := h.store.SaveMessage(c.Request.Context(), msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, proto.ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to save message")
		c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
		return
	}

	out := messageToProto(msg)
	h.broadcaster.Publish(proto.EventNewMessage, out)
	h.log.Debug().Int64("message_id", msg.ID).Int64("channel_id", channelID).Msg("message stored")
	c.JSON(http.StatusCreated, out)
}
