// Package discord builds and delivers webhook payloads for the destination
// platform.
package discord

// Payload is a Discord webhook request body. Embeds and AllowedMentions.Parse
// are always present (possibly empty), never null.
type Payload struct {
	Username        string          `json:"username"`
	AvatarURL       string          `json:"avatar_url"`
	Content         string          `json:"content"`
	TTS             bool            `json:"tts"`
	AllowedMentions AllowedMentions `json:"allowed_mentions"`
	Embeds          []Embed         `json:"embeds"`
}

// AllowedMentions with an empty Parse list suppresses all pings on the
// destination side regardless of message content.
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// Embed is the rich block attached to beatmap-referencing actions.
type Embed struct {
	Author      EmbedAuthor    `json:"author"`
	Description string         `json:"description"`
	Thumbnail   EmbedThumbnail `json:"thumbnail"`
	Fields      []EmbedField   `json:"fields"`
	Color       int            `json:"color"`
	Footer      EmbedFooter    `json:"footer"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}
