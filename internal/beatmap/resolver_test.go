package beatmap

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/you/bancho-relay/internal/osuapi"
)

type fakeBeatmapAPI struct {
	diffs []osuapi.Beatmap
	err   error
	setID string
}

func (f *fakeBeatmapAPI) GetBeatmaps(_ context.Context, setID string) ([]osuapi.Beatmap, error) {
	f.setID = setID
	return f.diffs, f.err
}

type fakeProfiles struct {
	user  *osuapi.User
	asked string
}

func (f *fakeProfiles) Fetch(_ context.Context, name string) *osuapi.User {
	f.asked = name
	return f.user
}

func TestResolveSortsDiffsAscending(t *testing.T) {
	api := &fakeBeatmapAPI{diffs: []osuapi.Beatmap{
		{Version: "Insane", StarRating: 4.8, Creator: "peppy", Artist: "Kenji Ninuma", Title: "DISCO PRINCE", BPM: "120", TotalLength: 142, Status: "Ranked", Favourites: "900", ApprovedDate: "2007-10-06 17:46:31"},
		{Version: "Easy", StarRating: 1.5, Creator: "peppy"},
		{Version: "Hard", StarRating: 3.2, Creator: "peppy"},
	}}
	profiles := &fakeProfiles{user: &osuapi.User{ID: "2", Name: "peppy"}}

	set, err := NewResolver(api, profiles).Resolve(context.Background(), "1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if api.setID != "1" {
		t.Fatalf("fetched set %q, want %q", api.setID, "1")
	}
	want := []string{"Easy", "Hard", "Insane"}
	for i, version := range want {
		if set.Diffs[i].Version != version {
			t.Fatalf("diff[%d] = %q, want %q", i, set.Diffs[i].Version, version)
		}
	}
}

func TestResolveStableOrderOnTies(t *testing.T) {
	api := &fakeBeatmapAPI{diffs: []osuapi.Beatmap{
		{Version: "A", StarRating: 2.0},
		{Version: "B", StarRating: 2.0},
		{Version: "C", StarRating: 2.0},
	}}
	set, err := NewResolver(api, &fakeProfiles{}).Resolve(context.Background(), "9")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i, version := range []string{"A", "B", "C"} {
		if set.Diffs[i].Version != version {
			t.Fatalf("tie order broken at %d: got %q", i, set.Diffs[i].Version)
		}
	}
}

func TestResolveMetadataFromFirstAPIRow(t *testing.T) {
	// set-level fields come from the first row as the API returned it, even
	// though sorting later moves that row
	api := &fakeBeatmapAPI{diffs: []osuapi.Beatmap{
		{Version: "Extra", StarRating: 6.1, Creator: "mapper", Artist: "xi", Title: "Blue Zenith", BPM: "200", TotalLength: 243, Status: "Ranked", Favourites: "12000", ApprovedDate: "2015-03-01 10:00:00"},
		{Version: "Easy", StarRating: 1.2, Creator: "mapper"},
	}}
	profiles := &fakeProfiles{user: &osuapi.User{ID: "44", Name: "mapper"}}

	set, err := NewResolver(api, profiles).Resolve(context.Background(), "292301")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if profiles.asked != "mapper" {
		t.Fatalf("resolved profile for %q, want first row's creator", profiles.asked)
	}
	if set.Artist != "xi" || set.Title != "Blue Zenith" || set.BPM != "200" {
		t.Fatalf("set metadata = %+v", set)
	}
	if set.ApprovedDate != "March 1, 2015" {
		t.Fatalf("approved date = %q", set.ApprovedDate)
	}
	if set.Mapper == nil || set.Mapper.ID != "44" {
		t.Fatalf("mapper = %+v", set.Mapper)
	}
}

func TestResolveToleratesNilMapper(t *testing.T) {
	api := &fakeBeatmapAPI{diffs: []osuapi.Beatmap{{Version: "Normal", Creator: "ghost"}}}
	set, err := NewResolver(api, &fakeProfiles{user: nil}).Resolve(context.Background(), "7")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Mapper != nil {
		t.Fatalf("mapper = %+v, want nil", set.Mapper)
	}
}

func TestResolvePropagatesAPIError(t *testing.T) {
	api := &fakeBeatmapAPI{err: errors.New("boom")}
	if _, err := NewResolver(api, &fakeProfiles{}).Resolve(context.Background(), "7"); err == nil {
		t.Fatal("expected error")
	}
}
