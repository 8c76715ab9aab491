package core

import "fmt"

// ConnectionStatus tracks the snapshot lifecycle of the store.
type ConnectionStatus string

const (
	StatusIdle    ConnectionStatus = "idle"
	StatusLoading ConnectionStatus = "loading"
	StatusReady   ConnectionStatus = "ready"
	StatusError   ConnectionStatus = "error"
)

// SendStatus tracks the local message submission pipeline only.
type SendStatus string

const (
	SendIdle    SendStatus = "idle"
	SendSending SendStatus = "sending"
)

// Store is the canonical in-memory sync state. It is not safe for concurrent use;
// the Hub is its only writer.
//
// Invariants after every operation:
//   - channel IDs are unique, message IDs are unique;
//   - every message references a live channel;
//   - currentChannelID is empty iff channels is empty, otherwise it references a live channel.
type Store struct {
	channels []Channel
	messages []Message

	channelIDs map[ID]struct{}
	messageIDs map[ID]struct{}
	// removed remembers channel IDs seen removed so a late creation echo cannot revive them.
	removed map[ID]struct{}

	currentChannelID ID
	connectionStatus ConnectionStatus
	sendStatus       SendStatus
	lastError        *CoreError

	// sending counts submissions in flight; sendStatus is sending iff it is positive.
	sending    int
	streamDown bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		channelIDs:       make(map[ID]struct{}),
		messageIDs:       make(map[ID]struct{}),
		removed:          make(map[ID]struct{}),
		connectionStatus: StatusIdle,
		sendStatus:       SendIdle,
	}
}

// View is an immutable copy of the store handed to observers.
type View struct {
	Channels         []Channel
	Messages         []Message
	CurrentChannelID ID
	ConnectionStatus ConnectionStatus
	SendStatus       SendStatus
	LastError        *CoreError
}

// Channel returns the channel with the given ID.
func (v View) Channel(id ID) (Channel, bool) {
	for _, c := range v.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// ChannelMessages returns the messages of one channel in insertion order.
func (v View) ChannelMessages(id ID) []Message {
	var out []Message
	for _, m := range v.Messages {
		if m.ChannelID == id {
			out = append(out, m)
		}
	}
	return out
}

// View copies the current state.
func (s *Store) View() View {
	v := View{
		Channels:         append([]Channel(nil), s.channels...),
		Messages:         append([]Message(nil), s.messages...),
		CurrentChannelID: s.currentChannelID,
		ConnectionStatus: s.connectionStatus,
		SendStatus:       s.sendStatus,
	}
	if s.lastError != nil {
		e := *s.lastError
		v.LastError = &e
	}
	return v
}

// HasChannel reports whether a channel with id is live.
func (s *Store) HasChannel(id ID) bool {
	_, ok := s.channelIDs[id]
	return ok
}

// WasRemoved reports whether a channel with id was removed during this session.
func (s *Store) WasRemoved(id ID) bool {
	_, ok := s.removed[id]
	return ok
}

// HasMessage reports whether a message with id is stored.
func (s *Store) HasMessage(id ID) bool {
	_, ok := s.messageIDs[id]
	return ok
}

// CurrentChannelID returns the selected channel, or the empty ID.
func (s *Store) CurrentChannelID() ID {
	return s.currentChannelID
}

// replaceSnapshot swaps channels and messages wholesale. Values must already be sanitized.
// Duplicate IDs keep their first occurrence; messages without a live channel are dropped.
func (s *Store) replaceSnapshot(snap Snapshot) (dropped int) {
	s.channels = s.channels[:0:0]
	s.messages = s.messages[:0:0]
	s.channelIDs = make(map[ID]struct{}, len(snap.Channels))
	s.messageIDs = make(map[ID]struct{}, len(snap.Messages))

	for _, c := range snap.Channels {
		// The server says it exists, which overrides anything seen removed earlier.
		delete(s.removed, c.ID)
		if !s.insertChannel(c) {
			dropped++
		}
	}
	for _, m := range snap.Messages {
		if !s.HasChannel(m.ChannelID) || !s.insertMessage(m) {
			dropped++
		}
	}

	if s.currentChannelID != "" && !s.HasChannel(s.currentChannelID) {
		s.currentChannelID = ""
	}
	return dropped
}

func (s *Store) insertChannel(c Channel) bool {
	if s.HasChannel(c.ID) {
		return false
	}
	s.channels = append(s.channels, c)
	s.channelIDs[c.ID] = struct{}{}
	return true
}

func (s *Store) insertMessage(m Message) bool {
	if s.HasMessage(m.ID) {
		return false
	}
	s.messages = append(s.messages, m)
	s.messageIDs[m.ID] = struct{}{}
	return true
}

func (s *Store) renameChannel(id ID, name string) bool {
	for i := range s.channels {
		if s.channels[i].ID == id {
			s.channels[i].Name = name
			return true
		}
	}
	return false
}

// removeChannel deletes the channel and every message that references it.
func (s *Store) removeChannel(id ID) (removedMessages int, ok bool) {
	if !s.HasChannel(id) {
		return 0, false
	}

	channels := s.channels[:0]
	for _, c := range s.channels {
		if c.ID != id {
			channels = append(channels, c)
		}
	}
	s.channels = channels
	delete(s.channelIDs, id)
	s.removed[id] = struct{}{}

	messages := s.messages[:0]
	for _, m := range s.messages {
		if m.ChannelID == id {
			delete(s.messageIDs, m.ID)
			removedMessages++
			continue
		}
		messages = append(messages, m)
	}
	s.messages = messages
	return removedMessages, true
}

func (s *Store) setLastError(err error) {
	s.lastError = Describe(err)
}

func (s *Store) beginSend() bool {
	s.sending++
	if s.sendStatus == SendSending {
		return false
	}
	s.sendStatus = SendSending
	return true
}

func (s *Store) endSend() bool {
	if s.sending > 0 {
		s.sending--
	}
	if s.sending > 0 || s.sendStatus == SendIdle {
		return false
	}
	s.sendStatus = SendIdle
	return true
}

// streamLost records a dropped push stream. A load in flight keeps its loading status.
func (s *Store) streamLost(err error) {
	s.streamDown = true
	if s.connectionStatus != StatusLoading {
		s.connectionStatus = StatusError
	}
	s.setLastError(err)
}

// streamRestored clears what streamLost set. fallback is the status to return to when the
// error status came from the stream alone.
func (s *Store) streamRestored(fallback ConnectionStatus) bool {
	if !s.streamDown {
		return false
	}
	s.streamDown = false
	if s.lastError == nil || s.lastError.Code != ErrCodeConnection {
		return false
	}
	s.lastError = nil
	if s.connectionStatus == StatusError {
		s.connectionStatus = fallback
	}
	return true
}

// Validate checks the store invariants.
func (s *Store) Validate() error {
	if len(s.channelIDs) != len(s.channels) {
		return fmt.Errorf("channel index out of sync: %d ids for %d channels", len(s.channelIDs), len(s.channels))
	}
	if len(s.messageIDs) != len(s.messages) {
		return fmt.Errorf("message index out of sync: %d ids for %d messages", len(s.messageIDs), len(s.messages))
	}

	seen := make(map[ID]struct{}, len(s.channels))
	for _, c := range s.channels {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate channel id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	seenMsg := make(map[ID]struct{}, len(s.messages))
	for _, m := range s.messages {
		if _, dup := seenMsg[m.ID]; dup {
			return fmt.Errorf("duplicate message id %q", m.ID)
		}
		seenMsg[m.ID] = struct{}{}
		if _, ok := seen[m.ChannelID]; !ok {
			return fmt.Errorf("message %q references missing channel %q", m.ID, m.ChannelID)
		}
	}

	switch {
	case len(s.channels) == 0 && s.currentChannelID != "":
		return fmt.Errorf("current channel %q set with no channels", s.currentChannelID)
	case len(s.channels) > 0 && s.currentChannelID == "":
		return fmt.Errorf("no current channel with %d channels", len(s.channels))
	case s.currentChannelID != "":
		if _, ok := seen[s.currentChannelID]; !ok {
			return fmt.Errorf("current channel %q does not exist", s.currentChannelID)
		}
	}
	return nil
}
