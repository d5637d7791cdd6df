package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/util"
)

const summaryLimit = 100

type ChangeKind string

const (
	ChangeIssueCreated   ChangeKind = "issue.created"
	ChangeIssueUpdated   ChangeKind = "issue.updated"
	ChangeCommentAdded   ChangeKind = "comment.added"
	ChangeProfileUpdated ChangeKind = "profile.updated"
	ChangeDatasetLoaded  ChangeKind = "dataset.loaded"
)

// Change describes a committed write. Presentation re-renders on it.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	IssueID   string     `json:"issueId,omitempty"`
	CommentID string     `json:"commentId,omitempty"`
	ActorID   string     `json:"actorId,omitempty"`
	At        time.Time  `json:"at"`
}

type ChangeNotifier interface {
	Notify(context.Context, Change)
}

// issueRecord is the normalized stored form: authors are referenced by id
// only. Records reachable from a published snapshot are never mutated.
type issueRecord struct {
	id          string
	title       string
	summary     string
	description string
	authorID    string
	category    Category
	location    string
	coordinates *Coordinates
	createdAt   time.Time
	status      Status
	priority    Priority
	media       Media
	anonymous   bool
	comments    []commentRecord
}

type commentRecord struct {
	id        string
	authorID  string
	text      string
	createdAt time.Time
}

type snapshot struct {
	actors     map[string]identity.User
	issues     []*issueRecord // newest first
	ministries []Ministry
	districts  []District
}

func emptySnapshot() *snapshot {
	return &snapshot{actors: make(map[string]identity.User)}
}

func (s *snapshot) find(issueID string) (int, *issueRecord) {
	for i, rec := range s.issues {
		if rec.id == issueID {
			return i, rec
		}
	}
	return -1, nil
}

func (s *snapshot) withActors(actors map[string]identity.User) *snapshot {
	next := *s
	next.actors = actors
	return &next
}

func (s *snapshot) withIssues(issues []*issueRecord) *snapshot {
	next := *s
	next.issues = issues
	return &next
}

func (s *snapshot) cloneActors() map[string]identity.User {
	actors := make(map[string]identity.User, len(s.actors)+1)
	for id, actor := range s.actors {
		actors[id] = actor
	}
	return actors
}

func (s *snapshot) hydrate(rec *issueRecord) Issue {
	issue := Issue{
		ID:          rec.id,
		Title:       rec.title,
		Summary:     rec.summary,
		Description: rec.description,
		Author:      s.actor(rec.authorID),
		Category:    rec.category,
		Location:    rec.location,
		CreatedAt:   rec.createdAt,
		Status:      rec.status,
		Priority:    rec.priority,
		Media:       rec.media.clone(),
		IsAnonymous: rec.anonymous,
		Comments:    make([]Comment, 0, len(rec.comments)),
	}
	if rec.coordinates != nil {
		coords := *rec.coordinates
		issue.Coordinates = &coords
	}
	for _, c := range rec.comments {
		issue.Comments = append(issue.Comments, s.hydrateComment(c))
	}
	return issue
}

func (s *snapshot) hydrateComment(c commentRecord) Comment {
	return Comment{ID: c.id, Author: s.actor(c.authorID), Text: c.text, CreatedAt: c.createdAt}
}

func (s *snapshot) actor(id string) identity.User {
	if actor, ok := s.actors[id]; ok {
		return actor
	}
	return identity.User{ID: id, DisplayName: id, AvatarGlyph: identity.GlyphFor(id)}
}

type Option func(*MemoryStore)

func WithClock(clock func() time.Time) Option {
	return func(m *MemoryStore) { m.clock = clock }
}

func WithIDGenerator(newID func(prefix string) string) Option {
	return func(m *MemoryStore) { m.newID = newID }
}

func WithNotifier(n ChangeNotifier) Option {
	return func(m *MemoryStore) { m.notifier = n }
}

// MemoryStore is the authoritative in-memory issue repository. Readers take
// the current snapshot; writers build a new snapshot and swap it in with a
// single assignment, so no reader ever sees a partially applied write.
type MemoryStore struct {
	mu       sync.RWMutex
	snap     *snapshot
	clock    func() time.Time
	newID    func(prefix string) string
	notifier ChangeNotifier
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		snap:  emptySnapshot(),
		clock: time.Now,
		newID: util.NewID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) current() *snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// update runs fn against the current snapshot and installs the snapshot it
// returns. When fn fails nothing is installed.
func (m *MemoryStore) update(fn func(*snapshot) (*snapshot, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.snap)
	if err != nil {
		return err
	}
	m.snap = next
	return nil
}

func (m *MemoryStore) notify(ctx context.Context, change Change) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, change)
}

// Load replaces the whole collection. Authors embedded in issues and
// comments are registered as actors unless Actors already defines them.
func (m *MemoryStore) Load(ctx context.Context, data Dataset) error {
	next := emptySnapshot()
	register := func(u identity.User) error {
		if strings.TrimSpace(u.ID) == "" {
			return apperr.Validation("actor id is required", "id")
		}
		if u.IsAnonymous() {
			return apperr.Validation("the anonymous actor cannot be stored", "id")
		}
		if _, exists := next.actors[u.ID]; !exists {
			next.actors[u.ID] = u
		}
		return nil
	}

	for _, actor := range data.Actors {
		if err := register(actor); err != nil {
			return fmt.Errorf("load actors: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(data.Issues))
	for _, issue := range data.Issues {
		if issue.ID == "" {
			return fmt.Errorf("load issues: %w", apperr.Validation("issue id is required", "id"))
		}
		if _, dup := seen[issue.ID]; dup {
			return fmt.Errorf("load issues: %w", apperr.Validation("duplicate issue id "+issue.ID, "id"))
		}
		seen[issue.ID] = struct{}{}
		if err := register(issue.Author); err != nil {
			return fmt.Errorf("load issue %s: %w", issue.ID, err)
		}

		rec := &issueRecord{
			id:          issue.ID,
			title:       issue.Title,
			summary:     issue.Summary,
			description: issue.Description,
			authorID:    issue.Author.ID,
			category:    issue.Category,
			location:    issue.Location,
			createdAt:   issue.CreatedAt,
			status:      issue.Status,
			priority:    issue.Priority,
			media:       issue.Media.clone(),
			anonymous:   issue.IsAnonymous,
		}
		if issue.Coordinates != nil {
			coords := *issue.Coordinates
			rec.coordinates = &coords
		}
		if rec.status == "" {
			rec.status = StatusPending
		}
		if rec.priority == "" {
			rec.priority = PriorityMedium
		}
		if rec.summary == "" {
			rec.summary = DeriveSummary(rec.description)
		}
		for _, c := range issue.Comments {
			if err := register(c.Author); err != nil {
				return fmt.Errorf("load comment %s: %w", c.ID, err)
			}
			rec.comments = append(rec.comments, commentRecord{id: c.ID, authorID: c.Author.ID, text: c.Text, createdAt: c.CreatedAt})
		}
		next.issues = append(next.issues, rec)
	}

	next.ministries = append([]Ministry(nil), data.Ministries...)
	next.districts = append([]District(nil), data.Districts...)

	m.mu.Lock()
	m.snap = next
	m.mu.Unlock()

	m.notify(ctx, Change{Kind: ChangeDatasetLoaded, At: m.clock()})
	return nil
}

// UpsertActor registers or replaces an actor record wholesale.
func (m *MemoryStore) UpsertActor(ctx context.Context, actor identity.User) error {
	if strings.TrimSpace(actor.ID) == "" {
		return apperr.Validation("actor id is required", "id")
	}
	if actor.IsAnonymous() {
		return apperr.Validation("the anonymous actor cannot be stored", "id")
	}
	if actor.AvatarGlyph == "" {
		actor.AvatarGlyph = identity.GlyphFor(actor.DisplayName)
	}
	err := m.update(func(s *snapshot) (*snapshot, error) {
		actors := s.cloneActors()
		actors[actor.ID] = actor
		return s.withActors(actors), nil
	})
	if err != nil {
		return err
	}
	m.notify(ctx, Change{Kind: ChangeProfileUpdated, ActorID: actor.ID, At: m.clock()})
	return nil
}

func (m *MemoryStore) GetActor(_ context.Context, actorID string) (identity.User, error) {
	snap := m.current()
	actor, ok := snap.actors[actorID]
	if !ok {
		return identity.User{}, apperr.NotFound("actor not found", actorID)
	}
	return actor, nil
}

// CreateIssue validates draft and prepends a new Pending issue authored by
// actorID. Anonymous drafts still store the real author.
func (m *MemoryStore) CreateIssue(ctx context.Context, draft IssueDraft, actorID string) (Issue, error) {
	if err := ValidateDraft(&draft); err != nil {
		return Issue{}, err
	}

	rec := &issueRecord{
		id:          m.newID("iss"),
		title:       strings.TrimSpace(draft.Title),
		summary:     strings.TrimSpace(draft.Summary),
		description: strings.TrimSpace(draft.Description),
		authorID:    actorID,
		category:    draft.Category,
		location:    strings.TrimSpace(draft.Location),
		coordinates: &Coordinates{Lat: draft.Coordinates.Lat, Lng: draft.Coordinates.Lng},
		createdAt:   m.clock(),
		status:      StatusPending,
		priority:    draft.Priority,
		media:       draft.Media.clone(),
		anonymous:   draft.Anonymous,
	}
	if rec.summary == "" {
		rec.summary = DeriveSummary(rec.description)
	}

	var created Issue
	err := m.update(func(s *snapshot) (*snapshot, error) {
		if _, ok := s.actors[actorID]; !ok {
			return nil, apperr.NotFound("actor not found", actorID)
		}
		issues := make([]*issueRecord, 0, len(s.issues)+1)
		issues = append(issues, rec)
		issues = append(issues, s.issues...)
		next := s.withIssues(issues)
		created = next.hydrate(rec)
		return next, nil
	})
	if err != nil {
		return Issue{}, err
	}

	m.notify(ctx, Change{Kind: ChangeIssueCreated, IssueID: rec.id, ActorID: actorID, At: rec.createdAt})
	return created, nil
}

// ValidateDraft checks the fields a report must carry before submission and
// fills category and priority defaults.
func ValidateDraft(draft *IssueDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return apperr.Validation("title is required", "title")
	}
	if strings.TrimSpace(draft.Description) == "" {
		return apperr.Validation("description is required", "description")
	}
	if strings.TrimSpace(draft.Location) == "" {
		return apperr.Validation("location is required", "location")
	}
	if draft.Coordinates == nil {
		return apperr.Validation("location coordinates are required", "coordinates")
	}
	if !validCoordinates(*draft.Coordinates) {
		return apperr.Validation("coordinates are out of range", "coordinates")
	}
	if draft.Category == "" {
		draft.Category = CategoryInfrastructure
	}
	if !draft.Category.Valid() {
		return apperr.Validation("unknown category "+string(draft.Category), "category")
	}
	if draft.Priority == "" {
		draft.Priority = PriorityMedium
	}
	if !draft.Priority.Valid() {
		return apperr.Validation("unknown priority "+string(draft.Priority), "priority")
	}
	return nil
}

func validCoordinates(c Coordinates) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DeriveSummary shortens a description to the summary shown on issue cards.
func DeriveSummary(description string) string {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) <= summaryLimit {
		return description
	}
	runes := []rune(description)
	return strings.TrimSpace(string(runes[:summaryLimit])) + "..."
}

// UpdateIssue applies patch to one issue.
func (m *MemoryStore) UpdateIssue(ctx context.Context, issueID string, patch IssuePatch) (Issue, error) {
	if err := validatePatch(patch); err != nil {
		return Issue{}, err
	}

	var updated Issue
	changed := false
	err := m.update(func(s *snapshot) (*snapshot, error) {
		idx, rec := s.find(issueID)
		if rec == nil {
			return nil, apperr.NotFound("issue not found", issueID)
		}
		if patch.Empty() {
			updated = s.hydrate(rec)
			return s, nil
		}

		next := *rec
		if patch.Title != nil {
			next.title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			next.description = strings.TrimSpace(*patch.Description)
		}
		if patch.Status != nil {
			next.status = *patch.Status
		}
		if patch.Priority != nil {
			next.priority = *patch.Priority
		}

		issues := append([]*issueRecord(nil), s.issues...)
		issues[idx] = &next
		snap := s.withIssues(issues)
		updated = snap.hydrate(&next)
		changed = true
		return snap, nil
	})
	if err != nil {
		return Issue{}, err
	}

	if changed {
		m.notify(ctx, Change{Kind: ChangeIssueUpdated, IssueID: issueID, At: m.clock()})
	}
	return updated, nil
}

func validatePatch(patch IssuePatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperr.Validation("title is required", "title")
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return apperr.Validation("description is required", "description")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return apperr.Validation("unknown status "+string(*patch.Status), "status")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return apperr.Validation("unknown priority "+string(*patch.Priority), "priority")
	}
	return nil
}

// UpdateActorProfile merges patch into the actor record. Issues and comments
// reference actors by id, so the next read of every one of them reflects the
// edit; the swap is a single assignment.
func (m *MemoryStore) UpdateActorProfile(ctx context.Context, actorID string, patch identity.Patch) (identity.User, error) {
	if actorID == identity.AnonymousID {
		_, err := identity.ApplyIdentityEdit(identity.Anonymous(), patch)
		return identity.User{}, err
	}

	var merged identity.User
	err := m.update(func(s *snapshot) (*snapshot, error) {
		current, ok := s.actors[actorID]
		if !ok {
			return nil, apperr.NotFound("actor not found", actorID)
		}
		next, err := identity.ApplyIdentityEdit(current, patch)
		if err != nil {
			return nil, err
		}
		merged = next
		actors := s.cloneActors()
		actors[actorID] = next
		return s.withActors(actors), nil
	})
	if err != nil {
		return identity.User{}, err
	}

	m.notify(ctx, Change{Kind: ChangeProfileUpdated, ActorID: actorID, At: m.clock()})
	return merged, nil
}

// AddComment appends a comment to an issue. Comments are kept oldest first.
func (m *MemoryStore) AddComment(ctx context.Context, issueID, actorID, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, apperr.Validation("comment text is required", "text")
	}

	c := commentRecord{id: m.newID("cmt"), authorID: actorID, text: text, createdAt: m.clock()}
	var added Comment
	err := m.update(func(s *snapshot) (*snapshot, error) {
		if _, ok := s.actors[actorID]; !ok {
			return nil, apperr.NotFound("actor not found", actorID)
		}
		idx, rec := s.find(issueID)
		if rec == nil {
			return nil, apperr.NotFound("issue not found", issueID)
		}
		next := *rec
		next.comments = make([]commentRecord, 0, len(rec.comments)+1)
		next.comments = append(next.comments, rec.comments...)
		next.comments = append(next.comments, c)

		issues := append([]*issueRecord(nil), s.issues...)
		issues[idx] = &next
		snap := s.withIssues(issues)
		added = snap.hydrateComment(c)
		return snap, nil
	})
	if err != nil {
		return Comment{}, err
	}

	m.notify(ctx, Change{Kind: ChangeCommentAdded, IssueID: issueID, CommentID: c.id, ActorID: actorID, At: c.createdAt})
	return added, nil
}

func (m *MemoryStore) GetIssue(_ context.Context, issueID string) (Issue, error) {
	snap := m.current()
	_, rec := snap.find(issueID)
	if rec == nil {
		return Issue{}, apperr.NotFound("issue not found", issueID)
	}
	return snap.hydrate(rec), nil
}

// ListIssues returns issues in storage order, newest first.
func (m *MemoryStore) ListIssues(_ context.Context, pred Predicate) ([]Issue, error) {
	snap := m.current()
	issues := make([]Issue, 0, len(snap.issues))
	for _, rec := range snap.issues {
		issue := snap.hydrate(rec)
		if pred != nil && !pred(issue) {
			continue
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// IssuesByAuthor lists the reports filed by actorID, anonymous ones
// included, so the real author can still manage them.
func (m *MemoryStore) IssuesByAuthor(ctx context.Context, actorID string) ([]Issue, error) {
	return m.ListIssues(ctx, func(issue Issue) bool { return issue.Author.ID == actorID })
}

func (m *MemoryStore) CommentsByAuthor(_ context.Context, actorID string) ([]AuthoredComment, error) {
	snap := m.current()
	var out []AuthoredComment
	for _, rec := range snap.issues {
		for _, c := range rec.comments {
			if c.authorID != actorID {
				continue
			}
			out = append(out, AuthoredComment{Comment: snap.hydrateComment(c), IssueID: rec.id, IssueTitle: rec.title})
		}
	}
	return out, nil
}

// CategoryCounts counts issues per category. Every category is present.
func (m *MemoryStore) CategoryCounts(_ context.Context) (map[Category]int, error) {
	snap := m.current()
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	for _, rec := range snap.issues {
		counts[rec.category]++
	}
	return counts, nil
}

func (m *MemoryStore) Ministries(_ context.Context) ([]Ministry, error) {
	return append([]Ministry(nil), m.current().ministries...), nil
}

func (m *MemoryStore) Districts(_ context.Context) ([]District, error) {
	return append([]District(nil), m.current().districts...), nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
