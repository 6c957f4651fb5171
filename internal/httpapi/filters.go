package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/bancho-relay/internal/core"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Filters captures the parsed query parameters for message lookups and
// stream subscriptions.
type Filters struct {
	Channels []string
	Authors  []string
	Since    *time.Time
	Limit    int
}

// ParseFilters parses query parameters into a Filters struct.
func ParseFilters(values url.Values) (Filters, error) {
	f := Filters{Limit: defaultLimit}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Filters{}, errors.New("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}

	if raw := values.Get("since"); raw != "" {
		parsed, err := parseSince(raw)
		if err != nil {
			return Filters{}, err
		}
		f.Since = &parsed
	}

	f.Channels = splitParam(values["channel"], false)
	f.Authors = splitParam(values["author"], true)

	return f, nil
}

func splitParam(raw []string, lower bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, chunk := range raw {
		for _, part := range strings.Split(chunk, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if lower {
				part = strings.ToLower(part)
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(-d).UTC(), nil
	}
	return time.Time{}, errors.New("invalid since parameter")
}

// Matches reports whether the event satisfies the filters.
func (f Filters) Matches(ev core.ChatEvent) bool {
	if len(f.Channels) > 0 {
		match := false
		for _, ch := range f.Channels {
			if strings.EqualFold(ch, ev.Channel) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if len(f.Authors) > 0 {
		author := strings.ToLower(ev.Author)
		match := false
		for _, a := range f.Authors {
			if strings.Contains(author, a) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if f.Since != nil && ev.Ts.Before(f.Since.UTC()) {
		return false
	}

	return true
}
