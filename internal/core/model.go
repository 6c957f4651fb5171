package core

import (
	"time"

	"github.com/google/uuid"
)

// PMChannel is the pseudo-channel key used for private messages, both in the
// webhook routing table and on events delivered from the PM stream.
const PMChannel = "PM"

// ChatEvent is the unified structure delivered by the Bancho client and
// consumed once by the relay pipeline.
type ChatEvent struct {
	ID      string    `json:"id"` // correlation ID, generated per event
	Ts      time.Time `json:"ts"`
	Channel string    `json:"channel"` // source channel (e.g. "#osu"), or "PM"
	Author  string    `json:"author"`  // IRC username of the sender
	Text    string    `json:"text"`    // for actions, the narrated text without CTCP framing
	Action  bool      `json:"action"`  // true when the message was a CTCP ACTION ("/me ...")
}

// NewChatEvent stamps a fresh event with a correlation ID and timestamp.
func NewChatEvent(channel, author, text string, action bool) ChatEvent {
	return ChatEvent{
		ID:      uuid.NewString(),
		Ts:      time.Now().UTC(),
		Channel: channel,
		Author:  author,
		Text:    text,
		Action:  action,
	}
}
