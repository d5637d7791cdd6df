package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingNotifier) Notify(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recordingNotifier) kinds() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]ChangeKind, 0, len(r.changes))
	for _, c := range r.changes {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *MemoryStore {
	t.Helper()
	seq := 0
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s_%d", prefix, seq)
		}),
	}
	m := NewMemoryStore(append(base, opts...)...)
	ctx := context.Background()
	for _, u := range []identity.User{
		{ID: "u1", DisplayName: "Maria Rodriguez", AvatarGlyph: "M", Location: "Georgetown, Region 4", Verified: true},
		{ID: "u2", DisplayName: "John Doe", AvatarGlyph: "J", Location: "Linden, Region 10"},
	} {
		if err := m.UpsertActor(ctx, u); err != nil {
			t.Fatalf("UpsertActor(%s): %v", u.ID, err)
		}
	}
	return m
}

func potholeDraft() IssueDraft {
	return IssueDraft{
		Title:       "Pothole",
		Description: "Large pothole",
		Location:    "Main St",
		Coordinates: &Coordinates{Lat: 1, Lng: 1},
	}
}

func strPtr(s string) *string { return &s }

func TestCreateIssueScenario(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	created, err := m.CreateIssue(ctx, potholeDraft(), "u1")
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("status = %q, want Pending", created.Status)
	}
	if created.Category != CategoryInfrastructure || created.Priority != PriorityMedium {
		t.Fatalf("defaults not applied: %q %q", created.Category, created.Priority)
	}
	if !created.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt = %v", created.CreatedAt)
	}

	issues, err := m.ListIssues(ctx, nil)
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(issues))
	}
	got := issues[0]
	if got.Author.ID != "u1" || len(got.Comments) != 0 || got.Status != StatusPending {
		t.Fatalf("unexpected issue: %+v", got)
	}

	if _, err := m.UpdateActorProfile(ctx, "u1", identity.Patch{DisplayName: strPtr("New Name")}); err != nil {
		t.Fatalf("UpdateActorProfile: %v", err)
	}
	reread, err := m.GetIssue(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if reread.Author.DisplayName != "New Name" {
		t.Fatalf("author display name = %q, want New Name", reread.Author.DisplayName)
	}
}

func TestCreateIssueValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*IssueDraft)
		field  string
	}{
		{name: "missing title", mutate: func(d *IssueDraft) { d.Title = "  " }, field: "title"},
		{name: "missing description", mutate: func(d *IssueDraft) { d.Description = "" }, field: "description"},
		{name: "missing location", mutate: func(d *IssueDraft) { d.Location = "" }, field: "location"},
		{name: "unresolved coordinates", mutate: func(d *IssueDraft) { d.Coordinates = nil }, field: "coordinates"},
		{name: "coordinates out of range", mutate: func(d *IssueDraft) { d.Coordinates = &Coordinates{Lat: 91, Lng: 0} }, field: "coordinates"},
		{name: "unknown category", mutate: func(d *IssueDraft) { d.Category = "Weather" }, field: "category"},
		{name: "unknown priority", mutate: func(d *IssueDraft) { d.Priority = "Urgent" }, field: "priority"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestStore(t)
			draft := potholeDraft()
			tc.mutate(&draft)

			_, err := m.CreateIssue(context.Background(), draft, "u1")
			if !apperr.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var de *apperr.DomainError
			if !errors.As(err, &de) || de.Details != tc.field {
				t.Fatalf("expected details %q, got %+v", tc.field, de)
			}
			issues, _ := m.ListIssues(context.Background(), nil)
			if len(issues) != 0 {
				t.Fatalf("rejected draft left %d issues behind", len(issues))
			}
		})
	}
}

func TestCreateIssueUnknownActor(t *testing.T) {
	m := newTestStore(t)
	if _, err := m.CreateIssue(context.Background(), potholeDraft(), "ghost"); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreateIssuePrependsAndKeepsOrder(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		d := potholeDraft()
		d.Title = fmt.Sprintf("Issue %d", i)
		created, err := m.CreateIssue(ctx, d, "u1")
		if err != nil {
			t.Fatalf("CreateIssue: %v", err)
		}
		ids = append(ids, created.ID)
	}

	issues, _ := m.ListIssues(ctx, nil)
	for i, issue := range issues {
		if want := ids[len(ids)-1-i]; issue.ID != want {
			t.Fatalf("position %d = %s, want %s", i, issue.ID, want)
		}
	}
}

func TestDeriveSummary(t *testing.T) {
	short := "Short description"
	if got := DeriveSummary(short); got != short {
		t.Fatalf("DeriveSummary(short) = %q", got)
	}

	long := strings.Repeat("a", 150)
	got := DeriveSummary(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != summaryLimit+3 {
		t.Fatalf("DeriveSummary(long) = %q", got)
	}

	m := newTestStore(t)
	d := potholeDraft()
	d.Description = long
	created, err := m.CreateIssue(context.Background(), d, "u1")
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if created.Summary != got {
		t.Fatalf("summary not derived: %q", created.Summary)
	}
}

func TestAnonymousIssueKeepsRealAuthor(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	d := potholeDraft()
	d.Anonymous = true
	created, err := m.CreateIssue(ctx, d, "u1")
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	for _, name := range []string{"First", "Second", "Third"} {
		if _, err := m.UpdateActorProfile(ctx, "u1", identity.Patch{DisplayName: strPtr(name)}); err != nil {
			t.Fatalf("UpdateActorProfile: %v", err)
		}
		issue, _ := m.GetIssue(ctx, created.ID)
		if shown := issue.DisplayAuthor(); shown.ID != identity.AnonymousID {
			t.Fatalf("anonymous issue rendered %+v", shown)
		}
		if issue.Author.DisplayName != name {
			t.Fatalf("real author not kept current: %q", issue.Author.DisplayName)
		}
	}

	mine, _ := m.IssuesByAuthor(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != created.ID {
		t.Fatalf("real author cannot see their anonymous report: %+v", mine)
	}
}

func TestUpdateIssue(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	created, _ := m.CreateIssue(ctx, potholeDraft(), "u1")

	resolved := StatusResolved
	critical := PriorityCritical
	updated, err := m.UpdateIssue(ctx, created.ID, IssuePatch{Status: &resolved, Priority: &critical, Title: strPtr("Huge pothole")})
	if err != nil {
		t.Fatalf("UpdateIssue: %v", err)
	}
	if updated.Status != StatusResolved || updated.Priority != PriorityCritical || updated.Title != "Huge pothole" {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Description != created.Description || updated.Location != created.Location {
		t.Fatal("unpatched fields changed")
	}

	// Status may move backwards.
	pending := StatusPending
	if _, err := m.UpdateIssue(ctx, created.ID, IssuePatch{Status: &pending}); err != nil {
		t.Fatalf("reverse transition rejected: %v", err)
	}
}

func TestUpdateIssueErrors(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	created, _ := m.CreateIssue(ctx, potholeDraft(), "u1")

	if _, err := m.UpdateIssue(ctx, "missing", IssuePatch{Title: strPtr("x")}); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	bogus := Status("Closed")
	if _, err := m.UpdateIssue(ctx, created.ID, IssuePatch{Status: &bogus}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := m.UpdateIssue(ctx, created.ID, IssuePatch{Title: strPtr(" ")}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	issue, _ := m.GetIssue(ctx, created.ID)
	if issue.Title != "Pothole" || issue.Status != StatusPending {
		t.Fatalf("failed updates modified the issue: %+v", issue)
	}
}

func TestIdentityPropagationCompleteness(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	a, _ := m.CreateIssue(ctx, potholeDraft(), "u1")
	b, _ := m.CreateIssue(ctx, potholeDraft(), "u2")
	for _, step := range []struct{ issue, actor, text string }{
		{a.ID, "u2", "I agree"},
		{a.ID, "u1", "Thanks"},
		{b.ID, "u1", "Same on my street"},
		{b.ID, "u2", "Still broken"},
	} {
		if _, err := m.AddComment(ctx, step.issue, step.actor, step.text); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}

	before, _ := m.GetActor(ctx, "u1")
	merged, err := m.UpdateActorProfile(ctx, "u1", identity.Patch{DisplayName: strPtr("Maria R."), AvatarGlyph: strPtr("x"), Location: strPtr("Bartica")})
	if err != nil {
		t.Fatalf("UpdateActorProfile: %v", err)
	}
	want, _ := identity.ApplyIdentityEdit(before, identity.Patch{DisplayName: strPtr("Maria R."), AvatarGlyph: strPtr("x"), Location: strPtr("Bartica")})
	if merged != want {
		t.Fatalf("merged = %+v, want %+v", merged, want)
	}

	issues, _ := m.ListIssues(ctx, nil)
	referenced := 0
	for _, issue := range issues {
		if issue.Author.ID == "u1" {
			referenced++
			if issue.Author != want {
				t.Fatalf("issue %s author stale: %+v", issue.ID, issue.Author)
			}
		}
		for _, c := range issue.Comments {
			switch c.Author.ID {
			case "u1":
				referenced++
				if c.Author != want {
					t.Fatalf("comment %s author stale: %+v", c.ID, c.Author)
				}
			case "u2":
				if c.Author.DisplayName != "John Doe" {
					t.Fatalf("unrelated actor changed: %+v", c.Author)
				}
			}
		}
	}
	if referenced != 3 {
		t.Fatalf("expected 3 references to u1, saw %d", referenced)
	}

	authored, _ := m.CommentsByAuthor(ctx, "u1")
	if len(authored) != 2 {
		t.Fatalf("CommentsByAuthor = %d entries", len(authored))
	}
	for _, c := range authored {
		if c.Author != want {
			t.Fatalf("profile comment stale: %+v", c.Author)
		}
	}
}

func TestUpdateActorProfileFailuresLeaveStateUnchanged(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	before, _ := m.GetActor(ctx, "u1")

	if _, err := m.UpdateActorProfile(ctx, "u1", identity.Patch{DisplayName: strPtr("ok"), Location: strPtr(" ")}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := m.GetActor(ctx, "u1")
	if after != before {
		t.Fatalf("partial patch applied: %+v", after)
	}

	if _, err := m.UpdateActorProfile(ctx, "ghost", identity.Patch{DisplayName: strPtr("x")}); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := m.UpdateActorProfile(ctx, identity.AnonymousID, identity.Patch{DisplayName: strPtr("x")}); !identity.IsAnonymousImmutable(err) {
		t.Fatalf("expected sentinel edit to be rejected, got %v", err)
	}
}

func TestAddComment(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	created, _ := m.CreateIssue(ctx, potholeDraft(), "u1")

	first, err := m.AddComment(ctx, created.ID, "u2", "My car got a flat tire here")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := m.AddComment(ctx, created.ID, "u1", "Reported to Public Works"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	issue, _ := m.GetIssue(ctx, created.ID)
	if len(issue.Comments) != 2 || issue.Comments[0].ID != first.ID {
		t.Fatalf("comments not oldest-first: %+v", issue.Comments)
	}
	if issue.Comments[0].Author.ID != "u2" {
		t.Fatalf("comment author = %+v", issue.Comments[0].Author)
	}

	if _, err := m.AddComment(ctx, created.ID, "u1", "  "); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := m.AddComment(ctx, "missing", "u1", "hi"); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := m.AddComment(ctx, created.ID, "ghost", "hi"); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for actor, got %v", err)
	}
}

func TestReadsAreIsolatedFromCallerMutation(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	d := potholeDraft()
	d.Media.Photos = []string{"road1.jpg"}
	created, _ := m.CreateIssue(ctx, d, "u1")

	created.Media.Photos[0] = "tampered.jpg"
	created.Coordinates.Lat = 50
	d.Media.Photos[0] = "tampered-draft.jpg"

	issue, _ := m.GetIssue(ctx, created.ID)
	if issue.Media.Photos[0] != "road1.jpg" || issue.Coordinates.Lat != 1 {
		t.Fatalf("stored issue was mutated through a returned value: %+v", issue)
	}
}

func TestListIssuesPredicate(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	d := potholeDraft()
	d.Category = CategoryHealth
	m.CreateIssue(ctx, d, "u1")
	m.CreateIssue(ctx, potholeDraft(), "u2")

	health, _ := m.ListIssues(ctx, func(i Issue) bool { return i.Category == CategoryHealth })
	if len(health) != 1 || health[0].Author.ID != "u1" {
		t.Fatalf("predicate not applied: %+v", health)
	}

	counts, _ := m.CategoryCounts(ctx)
	if counts[CategoryHealth] != 1 || counts[CategoryInfrastructure] != 1 || counts[CategorySecurity] != 0 {
		t.Fatalf("CategoryCounts = %v", counts)
	}
	if len(counts) != len(Categories) {
		t.Fatalf("expected every category present, got %v", counts)
	}
}

func TestLoadDataset(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	u4 := identity.User{ID: "u4", DisplayName: "Concerned Parent", AvatarGlyph: "C"}
	u3 := identity.User{ID: "u3", DisplayName: "Admin", AvatarGlyph: "A", Verified: true}

	err := m.Load(ctx, Dataset{
		Actors: []identity.User{u3},
		Issues: []Issue{
			{ID: "3", Title: "Teachers", Description: "Overcrowded classrooms", Author: u4, Category: CategoryEducation,
				Comments: []Comment{{ID: "c9", Author: u3, Text: "Forwarded"}}},
		},
		Ministries: []Ministry{{ID: "m1", Name: "Ministry of Public Works"}},
		Districts:  []District{{ID: "d1", Name: "Georgetown", Region: "Region 4"}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := m.GetActor(ctx, "u1"); !apperr.IsNotFound(err) {
		t.Fatal("Load should replace the previous collection")
	}
	if _, err := m.GetActor(ctx, "u4"); err != nil {
		t.Fatalf("inline author not registered: %v", err)
	}
	issue, err := m.GetIssue(ctx, "3")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue.Status != StatusPending || issue.Priority != PriorityMedium || issue.Summary != "Overcrowded classrooms" {
		t.Fatalf("defaults not applied on load: %+v", issue)
	}
	ministries, _ := m.Ministries(ctx)
	districts, _ := m.Districts(ctx)
	if len(ministries) != 1 || len(districts) != 1 {
		t.Fatalf("reference data not loaded: %v %v", ministries, districts)
	}

	dup := Dataset{Issues: []Issue{{ID: "x", Author: u4}, {ID: "x", Author: u4}}}
	if err := m.Load(ctx, dup); !apperr.IsValidation(err) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	if _, err := m.GetIssue(ctx, "3"); err != nil {
		t.Fatal("failed Load must not replace the collection")
	}
}

func TestNotifierSeesCommittedWritesOnly(t *testing.T) {
	rec := &recordingNotifier{}
	m := newTestStore(t, WithNotifier(rec))
	ctx := context.Background()

	created, _ := m.CreateIssue(ctx, potholeDraft(), "u1")
	m.CreateIssue(ctx, IssueDraft{}, "u1")
	m.AddComment(ctx, created.ID, "u2", "hello")
	m.UpdateIssue(ctx, created.ID, IssuePatch{})
	m.UpdateActorProfile(ctx, "u2", identity.Patch{DisplayName: strPtr("Johnny")})

	want := []ChangeKind{ChangeProfileUpdated, ChangeProfileUpdated, ChangeIssueCreated, ChangeCommentAdded, ChangeProfileUpdated}
	got := rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("changes = %v, want %v", got, want)
		}
	}
}

func TestConcurrentReadsDuringProfileEdits(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		created, _ := m.CreateIssue(ctx, potholeDraft(), "u1")
		m.AddComment(ctx, created.ID, "u1", "bump")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			m.UpdateActorProfile(ctx, "u1", identity.Patch{DisplayName: strPtr(fmt.Sprintf("name-%d", i))})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			issues, _ := m.ListIssues(ctx, nil)
			name := issues[0].Author.DisplayName
			for _, issue := range issues {
				if issue.Author.DisplayName != name || issue.Comments[0].Author.DisplayName != name {
					t.Errorf("mixed identity state within one read: %q vs %q", name, issue.Author.DisplayName)
					return
				}
			}
		}
	}()
	wg.Wait()
}

func TestDirectoryResolutionRate(t *testing.T) {
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"ministry", Ministry{IssuesManaged: 200, IssuesResolved: 150}.ResolutionRate(), 0.75},
		{"ministry with nothing managed", Ministry{}.ResolutionRate(), 0},
		{"district", District{IssuesReported: 40, IssuesResolved: 10}.ResolutionRate(), 0.25},
		{"district with nothing reported", District{IssuesResolved: 3}.ResolutionRate(), 0},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
