package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

func setupTestFeed(t *testing.T) (*RedisFeed, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	f, err := NewRedisFeed("redis://"+s.Addr(), "")
	if err != nil {
		t.Fatalf("failed to create redis feed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f, s
}

type failureCounter struct{ n int }

func (c *failureCounter) FeedPublishFailed() { c.n++ }

func TestNewRedisFeed(t *testing.T) {
	f, _ := setupTestFeed(t)
	if err := f.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if f.channel != DefaultChannel {
		t.Errorf("expected default channel, got %q", f.channel)
	}
}

func TestNewRedisFeedBadURL(t *testing.T) {
	if _, err := NewRedisFeed("not a url", ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	f, _ := setupTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := f.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	want := store.Change{Kind: store.ChangeIssueCreated, IssueID: "iss_1", ActorID: "u1", At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.Notify(ctx, want)

	select {
	case got := <-changes:
		if got.Kind != want.Kind || got.IssueID != want.IssueID || got.ActorID != want.ActorID || !got.At.Equal(want.At) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change was not delivered")
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			t.Fatal("expected channel to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestRecentIsCappedNewestFirst(t *testing.T) {
	f, _ := setupTestFeed(t)
	ctx := context.Background()

	for i := 0; i < recentLimit+5; i++ {
		if err := f.Publish(ctx, store.Change{Kind: store.ChangeCommentAdded, CommentID: string(rune('a' + i%26))}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if err := f.Publish(ctx, store.Change{Kind: store.ChangeProfileUpdated, ActorID: "u2"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	recent, err := f.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != recentLimit {
		t.Fatalf("expected %d recent changes, got %d", recentLimit, len(recent))
	}
	if recent[0].Kind != store.ChangeProfileUpdated || recent[0].ActorID != "u2" {
		t.Fatalf("newest change not first: %+v", recent[0])
	}

	few, _ := f.Recent(ctx, 3)
	if len(few) != 3 {
		t.Fatalf("Recent(3) returned %d", len(few))
	}
}

func TestNotifySwallowsFailures(t *testing.T) {
	f, s := setupTestFeed(t)
	counter := &failureCounter{}
	f.SetObserver(counter)
	s.Close()

	f.Notify(context.Background(), store.Change{Kind: store.ChangeIssueUpdated, IssueID: "iss_1"})
	if counter.n != 1 {
		t.Fatalf("expected one recorded failure, got %d", counter.n)
	}
}

func TestFeedAsStoreNotifier(t *testing.T) {
	f, _ := setupTestFeed(t)
	ctx := context.Background()
	m := store.NewMemoryStore(store.WithNotifier(f))

	if err := m.Load(ctx, store.Dataset{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	recent, err := f.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Kind != store.ChangeDatasetLoaded {
		t.Fatalf("store write was not published: %+v", recent)
	}
}
