package discord

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/you/bancho-relay/internal/beatmap"
	"github.com/you/bancho-relay/internal/classify"
	"github.com/you/bancho-relay/internal/core"
	"github.com/you/bancho-relay/internal/osuapi"
)

func TestBuildPayloadPlain(t *testing.T) {
	ev := core.NewChatEvent("#osu", "alice", "hello world", false)
	author := &osuapi.User{ID: "123", Name: "alice"}

	p := BuildPayload(ev, classify.Classification{Kind: classify.Plain}, author, nil)

	if p.Username != "alice (#osu)" {
		t.Fatalf("username = %q", p.Username)
	}
	if p.AvatarURL != "https://a.ppy.sh/123" {
		t.Fatalf("avatar = %q", p.AvatarURL)
	}
	if p.Content != "hello world" {
		t.Fatalf("content = %q", p.Content)
	}
	if p.TTS {
		t.Fatal("tts must stay off")
	}
	if len(p.Embeds) != 0 {
		t.Fatalf("plain payload has %d embeds", len(p.Embeds))
	}
}

func TestBuildPayloadFallbackAvatar(t *testing.T) {
	ev := core.NewChatEvent("#osu", "ghost", "hi", false)
	p := BuildPayload(ev, classify.Classification{Kind: classify.Plain}, nil, nil)
	if p.AvatarURL != "https://a.ppy.sh/undefined" {
		t.Fatalf("avatar = %q", p.AvatarURL)
	}
}

func TestBuildPayloadActionContent(t *testing.T) {
	ev := core.NewChatEvent("#osu", "alice", "is listening to something", true)
	cls := classify.Classification{Kind: classify.ActionPlain, ActionText: "is listening to something"}

	p := BuildPayload(ev, cls, nil, nil)
	if p.Content != "*alice is listening to something*" {
		t.Fatalf("content = %q", p.Content)
	}
	if len(p.Embeds) != 0 {
		t.Fatalf("plain action has %d embeds", len(p.Embeds))
	}
}

func TestBuildPayloadEmbed(t *testing.T) {
	ev := core.NewChatEvent("#osu", "alice", "is playing beatmapsets/1", true)
	cls := classify.Classification{
		Kind:       classify.ActionWithContent,
		SetID:      "1",
		ActionText: "is playing beatmapsets/1",
	}
	set := &beatmap.Set{
		ID:           "1",
		Artist:       "Kenji Ninuma",
		Title:        "DISCO PRINCE",
		Mapper:       &osuapi.User{ID: "2", Name: "peppy"},
		BPM:          "120",
		TotalLength:  142,
		Status:       "Ranked",
		Favourites:   "1026",
		ApprovedDate: "October 6, 2007",
		Diffs: []osuapi.Beatmap{
			{Version: "Normal", StarRating: 2.39774, MaxCombo: "314", AR: "6", OD: "6", HP: "6", CS: "4"},
		},
	}

	p := BuildPayload(ev, cls, &osuapi.User{ID: "99", Name: "alice"}, set)

	if len(p.Embeds) != 1 {
		t.Fatalf("got %d embeds, want 1", len(p.Embeds))
	}
	e := p.Embeds[0]
	if e.Author.Name != "Kenji Ninuma - DISCO PRINCE by peppy" {
		t.Fatalf("embed author = %q", e.Author.Name)
	}
	if e.Author.IconURL != "https://a.ppy.sh/2" {
		t.Fatalf("embed author icon = %q", e.Author.IconURL)
	}
	if e.Thumbnail.URL != "https://b.ppy.sh/thumb/1l.jpg" {
		t.Fatalf("thumbnail = %q", e.Thumbnail.URL)
	}
	if e.Description != "**Length:** 2:22 **BPM:** 120" {
		t.Fatalf("description = %q", e.Description)
	}
	if e.Color != 65280 {
		t.Fatalf("color = %d", e.Color)
	}
	if e.Footer.Text != "Ranked | 1026❤︎ | Approved October 6, 2007" {
		t.Fatalf("footer = %q", e.Footer.Text)
	}

	if len(e.Fields) != 1 {
		t.Fatalf("got %d fields", len(e.Fields))
	}
	f := e.Fields[0]
	if f.Name != "**__Normal__**" {
		t.Fatalf("field name = %q", f.Name)
	}
	if !strings.Contains(f.Value, "**⟩ Diff:** 2.40 ⭐") {
		t.Fatalf("field value = %q", f.Value)
	}
	if !strings.Contains(f.Value, "**⟩ Max Combo:** x314") {
		t.Fatalf("field value = %q", f.Value)
	}
}

func TestBuildPayloadEmbedFieldOrder(t *testing.T) {
	ev := core.NewChatEvent("#osu", "alice", "is listening to [https://osu.ppy.sh/beatmapsets/12345 SomeSong]", true)
	cls := classify.Classification{
		Kind:       classify.ActionWithContent,
		SetID:      "12345",
		ActionText: "is listening to [https://osu.ppy.sh/beatmapsets/12345 SomeSong]",
	}
	set := &beatmap.Set{
		ID: "12345",
		Diffs: []osuapi.Beatmap{
			{Version: "Normal", StarRating: 3.2},
			{Version: "Insane", StarRating: 5.8},
		},
	}

	p := BuildPayload(ev, cls, nil, set)
	if p.Content != "*alice is listening to [https://osu.ppy.sh/beatmapsets/12345 SomeSong]*" {
		t.Fatalf("content = %q", p.Content)
	}
	fields := p.Embeds[0].Fields
	if len(fields) != 2 {
		t.Fatalf("got %d fields", len(fields))
	}
	// fields keep the resolved (ascending star rating) order
	if fields[0].Name != "**__Normal__**" || fields[1].Name != "**__Insane__**" {
		t.Fatalf("field order = [%q, %q]", fields[0].Name, fields[1].Name)
	}
}

func TestBuildPayloadEmbedUnknownMapper(t *testing.T) {
	ev := core.NewChatEvent("#osu", "alice", "is playing beatmapsets/1", true)
	cls := classify.Classification{Kind: classify.ActionWithContent, SetID: "1", ActionText: "is playing beatmapsets/1"}
	set := &beatmap.Set{ID: "1", Artist: "a", Title: "t", Mapper: nil}

	p := BuildPayload(ev, cls, nil, set)
	e := p.Embeds[0]
	if e.Author.Name != "a - t by Unknown" {
		t.Fatalf("embed author = %q", e.Author.Name)
	}
	if e.Author.IconURL != "https://a.ppy.sh/undefined" {
		t.Fatalf("embed author icon = %q", e.Author.IconURL)
	}
}

func TestPayloadJSONShape(t *testing.T) {
	ev := core.NewChatEvent("#osu", "alice", "hi", false)
	p := BuildPayload(ev, classify.Classification{Kind: classify.Plain}, nil, nil)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)

	// mention suppression and the tts flag must always be on the wire
	if !strings.Contains(body, `"allowed_mentions":{"parse":[]}`) {
		t.Fatalf("body = %s", body)
	}
	if !strings.Contains(body, `"tts":false`) {
		t.Fatalf("body = %s", body)
	}
	if !strings.Contains(body, `"embeds":[]`) {
		t.Fatalf("body = %s", body)
	}
}
