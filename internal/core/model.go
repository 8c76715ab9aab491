package core

// ID is a server-assigned identifier. The empty ID means "none".
type ID string

// Channel is a named conversation. Channels with Removable=false are protected defaults.
type Channel struct {
	ID        ID
	Name      string
	Removable bool
}

// Message is a chat message posted to a channel.
type Message struct {
	ID        ID
	ChannelID ID
	Username  string
	Text      string
}

// Snapshot is the bulk channel and message state fetched at session start.
type Snapshot struct {
	Channels []Channel
	Messages []Message
}
