package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// ChannelHandlers provides HTTP handlers for channel management endpoints.
// Every successful mutation is broadcast on the push stream.
type ChannelHandlers struct {
	store       store.Store
	broadcaster *Broadcaster
	log         *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, broadcaster *Broadcaster, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		store:       st,
		broadcaster: broadcaster,
		log:         logger,
	}
}

// ListChannels handles GET /api/v1/channels.
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	channels, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.Channel, 0, len(channels))
	for _, ch := range channels {
		response = append(response, channelToProto(ch))
	}
	c.JSON(http.StatusOK, response)
}

// CreateChannel handles POST /api/v1/channels.
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	var req proto.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "name is required"})
		return
	}

	ch, err := h.store.CreateChannel(c.Request.Context(), name)
	if err != nil {
		h.writeStoreError(c, err, "create channel")
		return
	}

	out := channelToProto(ch)
	h.broadcaster.Publish(proto.EventNewChannel, out)
	h.log.Info().Int64("channel_id", ch.ID).Str("name", ch.Name).Msg("channel created")
	c.JSON(http.StatusCreated, out)
}

// RenameChannel handles PATCH /api/v1/channels/:id.
func (h *ChannelHandlers) RenameChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req proto.RenameChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid rename channel request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "name is required"})
		return
	}

	ch, err := h.store.RenameChannel(c.Request.Context(), id, name)
	if err != nil {
		h.writeStoreError(c, err, "rename channel")
		return
	}

	out := channelToProto(ch)
	h.broadcaster.Publish(proto.EventRenameChannel, out)
	h.log.Info().Int64("channel_id", ch.ID).Str("name", ch.Name).Msg("channel renamed")
	c.JSON(http.StatusOK, out)
}

// RemoveChannel handles DELETE /api/v1/channels/:id.
func (h *ChannelHandlers) RemoveChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteChannel(c.Request.Context(), id); err != nil {
		h.writeStoreError(c, err, "remove channel")
		return
	}

	h.broadcaster.Publish(proto.EventRemoveChannel, proto.RemoveChannelData{ID: proto.Int64ID(id)})
	h.log.Info().Int64("channel_id", id).Msg("channel removed")
	c.Status(http.StatusNoContent)
}

func (h *ChannelHandlers) writeStoreError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, proto.ErrorResponse{Error: "channel not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, proto.ErrorResponse{Error: "channel with this name already exists"})
	case errors.Is(err, store.ErrProtected):
		c.JSON(http.StatusForbidden, proto.ErrorResponse{Error: "channel cannot be modified"})
	default:
		h.log.Error().Err(err).Str("op", op).Msg("channel store failure")
		c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}
