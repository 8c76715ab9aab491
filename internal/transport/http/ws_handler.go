package http

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WSHandler upgrades authenticated requests and streams push envelopes to them.
type WSHandler struct {
	broadcaster *Broadcaster
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. It must run behind AuthMiddleware.
func NewWSHandler(broadcaster *Broadcaster, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{broadcaster: broadcaster, log: logger}
}

// Handle serves GET /ws.
func (h *WSHandler) Handle(c *gin.Context) {
	_, username, _ := currentUser(c)

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	sub := h.broadcaster.subscribe(username)
	defer h.broadcaster.unsubscribe(sub)

	h.log.Info().Str("client_id", sub.ID).Str("username", username).Msg("push client connected")

	// The push stream is one-way; CloseRead answers control frames and ends ctx when the peer leaves.
	ctx := conn.CloseRead(c.Request.Context())

	err = h.writeLoop(ctx, conn, sub)

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case errors.Is(err, errSlowConsumer):
		status = websocket.StatusPolicyViolation
		reason = err.Error()
	case err != nil && !errors.Is(err, context.Canceled):
		h.log.Warn().Err(err).Str("client_id", sub.ID).Msg("ws connection closed with error")
		status = websocket.StatusInternalError
		reason = "write failed"
	}
	_ = conn.Close(status, reason)

	h.log.Info().Str("client_id", sub.ID).Str("username", username).Msg("push client disconnected")
}

var errSlowConsumer = errors.New("slow consumer")

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *subscriber) error {
	for {
		select {
		case push, ok := <-sub.Events:
			if !ok {
				return errSlowConsumer
			}
			if err := wsjson.Write(ctx, conn, push); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
