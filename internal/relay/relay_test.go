package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/you/bancho-relay/internal/beatmap"
	"github.com/you/bancho-relay/internal/core"
	"github.com/you/bancho-relay/internal/discord"
	"github.com/you/bancho-relay/internal/osuapi"
)

type stubProfiles struct {
	user *osuapi.User
}

func (s *stubProfiles) Fetch(context.Context, string) *osuapi.User { return s.user }

type stubSets struct {
	set   *beatmap.Set
	err   error
	calls int
}

func (s *stubSets) Resolve(_ context.Context, setID string) (*beatmap.Set, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.set != nil {
		return s.set, nil
	}
	return &beatmap.Set{ID: setID}, nil
}

type captureDispatcher struct {
	mu       sync.Mutex
	urls     []string
	payloads []discord.Payload
	err      error
}

func (c *captureDispatcher) Send(_ context.Context, url string, payload discord.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = append(c.urls, url)
	c.payloads = append(c.payloads, payload)
	return c.err
}

func (c *captureDispatcher) sent() []discord.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]discord.Payload(nil), c.payloads...)
}

type capturePublisher struct {
	mu  sync.Mutex
	evs []core.ChatEvent
}

func (p *capturePublisher) Publish(ev core.ChatEvent) {
	p.mu.Lock()
	p.evs = append(p.evs, ev)
	p.mu.Unlock()
}

func routesFor(m map[string]string) Routes {
	return func(channel string) (string, bool) {
		url, ok := m[channel]
		return url, ok
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRelay(profiles ProfileFetcher, sets SetResolver, webhook Dispatcher, routes Routes, opts ...Option) *Relay {
	opts = append(opts, WithLogger(quietLogger()))
	return New(profiles, sets, webhook, routes, opts...)
}

func TestProcessPlainMessage(t *testing.T) {
	dispatch := &captureDispatcher{}
	sets := &stubSets{}
	r := newTestRelay(
		&stubProfiles{user: &osuapi.User{ID: "1", Name: "alice"}},
		sets,
		dispatch,
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
	)

	ev := core.NewChatEvent("#osu", "alice", "hello", false)
	r.Process(context.Background(), ev)

	sent := dispatch.sent()
	if len(sent) != 1 {
		t.Fatalf("dispatched %d payloads, want 1", len(sent))
	}
	if dispatch.urls[0] != "https://hook/osu" {
		t.Fatalf("url = %q", dispatch.urls[0])
	}
	if sent[0].Content != "hello" {
		t.Fatalf("content = %q", sent[0].Content)
	}
	if sets.calls != 0 {
		t.Fatalf("plain message triggered %d beatmap lookups", sets.calls)
	}
}

func TestProcessDropsUnroutedChannel(t *testing.T) {
	dispatch := &captureDispatcher{}
	r := newTestRelay(&stubProfiles{}, &stubSets{}, dispatch, routesFor(nil))

	r.Process(context.Background(), core.NewChatEvent("#taiko", "bob", "hi", false))

	if len(dispatch.sent()) != 0 {
		t.Fatal("unrouted channel must not dispatch")
	}
}

func TestProcessProfileFailureStillDispatches(t *testing.T) {
	dispatch := &captureDispatcher{}
	r := newTestRelay(
		&stubProfiles{user: nil},
		&stubSets{},
		dispatch,
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
	)

	r.Process(context.Background(), core.NewChatEvent("#osu", "ghost", "still here", false))

	sent := dispatch.sent()
	if len(sent) != 1 {
		t.Fatalf("dispatched %d payloads, want 1", len(sent))
	}
	if sent[0].AvatarURL != "https://a.ppy.sh/undefined" {
		t.Fatalf("avatar = %q, want fallback", sent[0].AvatarURL)
	}
}

func TestProcessEnrichesAction(t *testing.T) {
	dispatch := &captureDispatcher{}
	sets := &stubSets{set: &beatmap.Set{
		ID:     "1",
		Artist: "Kenji Ninuma",
		Title:  "DISCO PRINCE",
		Diffs:  []osuapi.Beatmap{{Version: "Normal"}},
	}}
	r := newTestRelay(
		&stubProfiles{user: &osuapi.User{ID: "9", Name: "alice"}},
		sets,
		dispatch,
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
	)

	ev := core.NewChatEvent("#osu", "alice", "is playing beatmapsets/1", true)
	r.Process(context.Background(), ev)

	sent := dispatch.sent()
	if len(sent) != 1 {
		t.Fatalf("dispatched %d payloads", len(sent))
	}
	if sent[0].Content != "*alice is playing beatmapsets/1*" {
		t.Fatalf("content = %q", sent[0].Content)
	}
	if len(sent[0].Embeds) != 1 {
		t.Fatalf("got %d embeds, want 1", len(sent[0].Embeds))
	}
	if sets.calls != 1 {
		t.Fatalf("resolved %d times", sets.calls)
	}
}

func TestProcessBeatmapFailureDropsMessage(t *testing.T) {
	dispatch := &captureDispatcher{}
	r := newTestRelay(
		&stubProfiles{},
		&stubSets{err: errors.New("api down")},
		dispatch,
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
	)

	r.Process(context.Background(), core.NewChatEvent("#osu", "alice", "is playing beatmapsets/1", true))

	if len(dispatch.sent()) != 0 {
		t.Fatal("failed enrichment must drop the message")
	}
}

func TestProcessDispatchErrorIsSwallowed(t *testing.T) {
	dispatch := &captureDispatcher{err: errors.New("webhook status 400")}
	r := newTestRelay(
		&stubProfiles{},
		&stubSets{},
		dispatch,
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
	)

	// fire-and-forget: a delivery failure is counted, not propagated
	r.Process(context.Background(), core.NewChatEvent("#osu", "alice", "hi", false))
}

func TestProcessPublishesBeforeDispatch(t *testing.T) {
	pub := &capturePublisher{}
	r := newTestRelay(
		&stubProfiles{},
		&stubSets{},
		&captureDispatcher{},
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
		WithPublisher(pub),
	)

	ev := core.NewChatEvent("#osu", "alice", "hi", false)
	r.Process(context.Background(), ev)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.evs) != 1 || pub.evs[0].ID != ev.ID {
		t.Fatalf("published = %+v", pub.evs)
	}
}

func TestHandleRunsConcurrently(t *testing.T) {
	dispatch := &captureDispatcher{}
	r := newTestRelay(
		&stubProfiles{},
		&stubSets{},
		dispatch,
		routesFor(map[string]string{"#osu": "https://hook/osu"}),
	)

	const n = 50
	for i := 0; i < n; i++ {
		r.Handle(core.NewChatEvent("#osu", "alice", "hi", false))
	}
	r.Wait()

	if got := len(dispatch.sent()); got != n {
		t.Fatalf("dispatched %d payloads, want %d", got, n)
	}
}

func TestHandleRecoversFromPanic(t *testing.T) {
	panicky := func(string) (string, bool) { panic("route table poisoned") }
	r := newTestRelay(&stubProfiles{}, &stubSets{}, &captureDispatcher{}, panicky)

	r.Handle(core.NewChatEvent("#osu", "alice", "hi", false))
	r.Wait() // must not crash the test binary
}
