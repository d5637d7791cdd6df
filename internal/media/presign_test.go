package media

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

func newTestPresigner(t *testing.T) *Presigner {
	t.Helper()
	p, err := NewPresigner(Options{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "issue-media",
		Region:    "us-east-1",
		TTL:       time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPresigner: %v", err)
	}
	return p
}

func TestNewPresignerRequiresBucket(t *testing.T) {
	if _, err := NewPresigner(Options{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestURLPresignsRelativeRefs(t *testing.T) {
	p := newTestPresigner(t)

	raw, err := p.URL(context.Background(), "photos/road1.jpg")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Host != "localhost:9000" || u.Path != "/issue-media/photos/road1.jpg" {
		t.Fatalf("unexpected url %s", raw)
	}
	q := u.Query()
	if q.Get("X-Amz-Signature") == "" || q.Get("X-Amz-Expires") != "3600" {
		t.Fatalf("url not presigned: %s", raw)
	}
}

func TestURLPassesThroughAbsoluteRefs(t *testing.T) {
	p := newTestPresigner(t)
	for _, ref := range []string{
		"https://cdn.example.org/lights.jpg",
		"http://example.org/a.mp4",
		"data:image/png;base64,AAAA",
	} {
		got, err := p.URL(context.Background(), ref)
		if err != nil || got != ref {
			t.Fatalf("URL(%q) = %q, %v", ref, got, err)
		}
	}
	if _, err := p.URL(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank ref")
	}
}

func TestResolveMedia(t *testing.T) {
	p := newTestPresigner(t)
	in := store.Media{
		Photos: []string{"photos/road1.jpg", "https://cdn.example.org/road2.jpg"},
		Audio:  []string{"audio/note.m4a"},
	}

	out, err := p.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out.Photos) != 2 || len(out.Videos) != 0 || len(out.Audio) != 1 {
		t.Fatalf("unexpected shape: %+v", out)
	}
	if !strings.Contains(out.Photos[0], "/issue-media/photos/road1.jpg?") || out.Photos[1] != in.Photos[1] {
		t.Fatalf("photos = %v", out.Photos)
	}
	if in.Photos[0] != "photos/road1.jpg" {
		t.Fatal("Resolve mutated its input")
	}
}
