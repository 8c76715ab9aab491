package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Push event names carried in Push.Event.
const (
	EventNewMessage    = "newMessage"
	EventNewChannel    = "newChannel"
	EventRemoveChannel = "removeChannel"
	EventRenameChannel = "renameChannel"
)

// ID is a server identifier. It decodes from a JSON string or number and always encodes as a string.
type ID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Int64ID formats a numeric database key.
func Int64ID(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// Int64 parses a numeric ID.
func (id ID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

// Channel is the wire form of a channel.
type Channel struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Removable bool   `json:"removable"`
}

// Message is the wire form of a message.
type Message struct {
	ID        ID     `json:"id"`
	ChannelID ID     `json:"channelId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
}

// CreateChannelRequest is the body of POST /channels.
type CreateChannelRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// RenameChannelRequest is the body of PATCH /channels/{id}.
type RenameChannelRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	Text      string `json:"text" binding:"required"`
	ChannelID ID     `json:"channelId" binding:"required"`
}

// Credentials is the body of POST /login and POST /signup.
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Push is the envelope of every event on the push stream.
type Push struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RemoveChannelData is the payload of removeChannel.
type RemoveChannelData struct {
	ID ID `json:"id"`
}

// NewPush marshals data into an envelope.
func NewPush(event string, data any) (Push, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Push{}, fmt.Errorf("marshal %s: %w", event, err)
	}
	return Push{Event: event, Data: raw}, nil
}
