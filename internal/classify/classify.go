// Package classify decides how a chat event should be relayed: as a plain
// message, as a narrated action, or as an action referencing a beatmap set
// that is worth enriching.
package classify

import (
	"regexp"
	"strings"

	"github.com/you/bancho-relay/internal/core"
)

// Kind is the classification outcome.
type Kind int

const (
	// Plain is a literal chat message; its text is relayed verbatim.
	Plain Kind = iota
	// ActionPlain is a "/me" style status line with no resolvable content.
	ActionPlain
	// ActionWithContent is an action referencing a beatmap set by ID.
	ActionWithContent
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case ActionPlain:
		return "action"
	case ActionWithContent:
		return "action_with_content"
	default:
		return "unknown"
	}
}

// Classification carries the kind plus the extracted pieces the payload
// builder needs. SetID is set only for ActionWithContent.
type Classification struct {
	Kind       Kind
	SetID      string
	ActionText string
	// Ambiguous marks an action that matched a trigger keyword but carried
	// no extractable set ID; it is relayed as ActionPlain and the caller
	// should log it.
	Ambiguous bool
}

var setIDPattern = regexp.MustCompile(`beatmapsets/(\d+)`)

// triggers mark action text describing beatmap activity ("is playing ...",
// "is listening to ...") or carrying a direct set link.
var triggers = []string{"playing", "listening", "beatmapsets/"}

// Classify inspects one event. Non-action events are always Plain with the
// text untouched.
func Classify(ev core.ChatEvent) Classification {
	if !ev.Action {
		return Classification{Kind: Plain}
	}

	cls := Classification{Kind: ActionPlain, ActionText: ev.Text}
	if !hasTrigger(ev.Text) {
		return cls
	}

	m := setIDPattern.FindStringSubmatch(ev.Text)
	if m == nil {
		// trigger keyword without a resolvable link; relay as a plain action
		cls.Ambiguous = true
		return cls
	}

	cls.Kind = ActionWithContent
	cls.SetID = m[1]
	return cls
}

func hasTrigger(text string) bool {
	for _, t := range triggers {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
