package discord

import (
	"fmt"

	"github.com/you/bancho-relay/internal/beatmap"
	"github.com/you/bancho-relay/internal/classify"
	"github.com/you/bancho-relay/internal/core"
	"github.com/you/bancho-relay/internal/osuapi"
)

const (
	avatarBaseURL = "https://a.ppy.sh/"
	thumbURLFmt   = "https://b.ppy.sh/thumb/%sl.jpg"

	// FallbackAvatarID is substituted when a profile could not be resolved.
	// The resulting https://a.ppy.sh/undefined URL is the shape downstream
	// consumers have always seen for unknown users; Discord falls back to
	// its default avatar for it.
	FallbackAvatarID = "undefined"

	// UnknownMapper labels a set whose author profile could not be resolved.
	UnknownMapper = "Unknown"

	embedColor = 65280
)

// BuildPayload assembles the webhook body for one classified event. author
// may be nil (lookup exhausted); set must be non-nil exactly when cls.Kind is
// ActionWithContent and resolution succeeded.
func BuildPayload(ev core.ChatEvent, cls classify.Classification, author *osuapi.User, set *beatmap.Set) Payload {
	p := Payload{
		Username:        fmt.Sprintf("%s (%s)", ev.Author, ev.Channel),
		AvatarURL:       avatarURL(author),
		TTS:             false,
		AllowedMentions: AllowedMentions{Parse: []string{}},
		Embeds:          []Embed{},
	}

	switch cls.Kind {
	case classify.Plain:
		p.Content = ev.Text
	default:
		p.Content = fmt.Sprintf("*%s %s*", ev.Author, cls.ActionText)
	}

	if cls.Kind == classify.ActionWithContent && set != nil {
		p.Embeds = append(p.Embeds, buildEmbed(set))
	}
	return p
}

func buildEmbed(set *beatmap.Set) Embed {
	mapperName := UnknownMapper
	mapperID := FallbackAvatarID
	if set.Mapper != nil {
		if set.Mapper.Name != "" {
			mapperName = set.Mapper.Name
		}
		if set.Mapper.ID != "" {
			mapperID = set.Mapper.ID
		}
	}

	fields := make([]EmbedField, 0, len(set.Diffs))
	for _, d := range set.Diffs {
		fields = append(fields, EmbedField{
			Name: fmt.Sprintf("**__%s__**", d.Version),
			Value: fmt.Sprintf(
				"**⟩ Diff:** %.2f ⭐ **⟩ Max Combo:** x%s \n**⟩ AR:** %s **⟩ OD:** %s **⟩ HP:** %s **⟩ CS:** %s",
				d.StarRating, d.MaxCombo, d.AR, d.OD, d.HP, d.CS,
			),
		})
	}

	return Embed{
		Author: EmbedAuthor{
			Name:    fmt.Sprintf("%s - %s by %s", set.Artist, set.Title, mapperName),
			IconURL: avatarBaseURL + mapperID,
		},
		Description: fmt.Sprintf("**Length:** %s **BPM:** %s", beatmap.FormatLength(set.TotalLength), set.BPM),
		Thumbnail:   EmbedThumbnail{URL: fmt.Sprintf(thumbURLFmt, set.ID)},
		Fields:      fields,
		Color:       embedColor,
		Footer: EmbedFooter{
			Text: fmt.Sprintf("%s | %s❤︎ | Approved %s", set.Status, set.Favourites, set.ApprovedDate),
		},
	}
}

func avatarURL(author *osuapi.User) string {
	if author == nil || author.ID == "" {
		return avatarBaseURL + FallbackAvatarID
	}
	return avatarBaseURL + author.ID
}
