// Package beatmap resolves a referenced beatmap set into the aggregate the
// payload builder renders: ordered difficulties, mapper profile, and
// preformatted header fields.
package beatmap

import (
	"context"
	"sort"

	"github.com/you/bancho-relay/internal/osuapi"
)

// Set is the resolved aggregate for one beatmap set. It lives for the
// duration of a single enrichment and is never cached.
type Set struct {
	ID     string
	Artist string
	Title  string
	// Mapper is the set author's profile; nil when the lookup failed.
	Mapper      *osuapi.User
	BPM         string
	TotalLength int
	Status      string
	Favourites  string
	// ApprovedDate is preformatted for display ("October 6, 2007").
	ApprovedDate string
	// Diffs is sorted ascending by star rating; ties keep API order.
	Diffs []osuapi.Beatmap
}

// BeatmapAPI lists the difficulties of a set.
type BeatmapAPI interface {
	GetBeatmaps(ctx context.Context, setID string) ([]osuapi.Beatmap, error)
}

// ProfileFetcher resolves a profile or nil, never an error.
type ProfileFetcher interface {
	Fetch(ctx context.Context, name string) *osuapi.User
}

// Resolver fetches and assembles beatmap sets.
type Resolver struct {
	api   BeatmapAPI
	users ProfileFetcher
}

func NewResolver(api BeatmapAPI, users ProfileFetcher) *Resolver {
	return &Resolver{api: api, users: users}
}

// Resolve fetches all difficulties of setID in one call, resolves the
// mapper's profile (a nil profile is tolerated), and sorts difficulties
// ascending by star rating. An API failure propagates; it is fatal for the
// one message being enriched, not for the relay.
func (r *Resolver) Resolve(ctx context.Context, setID string) (*Set, error) {
	diffs, err := r.api.GetBeatmaps(ctx, setID)
	if err != nil {
		return nil, err
	}

	first := diffs[0]
	mapper := r.users.Fetch(ctx, first.Creator)

	sort.SliceStable(diffs, func(i, j int) bool {
		return diffs[i].StarRating < diffs[j].StarRating
	})

	return &Set{
		ID:           setID,
		Artist:       first.Artist,
		Title:        first.Title,
		Mapper:       mapper,
		BPM:          first.BPM,
		TotalLength:  first.TotalLength,
		Status:       first.Status,
		Favourites:   first.Favourites,
		ApprovedDate: FormatApprovedDate(first.ApprovedDate),
		Diffs:        diffs,
	}, nil
}
