package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/config"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/narration"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/rbac"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/search"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

type dataStore interface {
	Load(context.Context, store.Dataset) error
	CreateIssue(context.Context, store.IssueDraft, string) (store.Issue, error)
	UpdateIssue(context.Context, string, store.IssuePatch) (store.Issue, error)
	UpdateActorProfile(context.Context, string, identity.Patch) (identity.User, error)
	AddComment(context.Context, string, string, string) (store.Comment, error)
	GetIssue(context.Context, string) (store.Issue, error)
	GetActor(context.Context, string) (identity.User, error)
	ListIssues(context.Context, store.Predicate) ([]store.Issue, error)
	IssuesByAuthor(context.Context, string) ([]store.Issue, error)
	CommentsByAuthor(context.Context, string) ([]store.AuthoredComment, error)
	CategoryCounts(context.Context) (map[store.Category]int, error)
	Ministries(context.Context) ([]store.Ministry, error)
	Districts(context.Context) ([]store.District, error)
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(context.Context, search.Query) (search.Response, error)
	IndexIssues(issues ...store.Issue)
	ReindexAll(context.Context)
}

type narrationMachine interface {
	Toggle(blockID, text string, onEnd narration.EndFunc) (uint64, error)
	Stop() bool
	Snapshot() narration.Snapshot
}

type mediaResolver interface {
	Resolve(context.Context, store.Media) (store.Media, error)
}

type recorder interface {
	IssueCreated()
	CommentAdded()
	StatusChanged(status string)
	ProfileEdited()
}

// Settings are the per-session flags the presentation layer reads. They are
// injected from configuration, never global.
type Settings struct {
	ActorID  string
	Role     rbac.Role
	Admin    bool
	DarkMode bool
}

// HomeView is the issue feed with its category chips.
type HomeView struct {
	Issues []store.Issue
	Counts map[store.Category]int
	Total  int
}

// IssueDetail is a single issue as rendered, with media resolved to URLs and
// the author already projected.
type IssueDetail struct {
	Issue   store.Issue
	Author  identity.User
	Media   store.Media
	Created string
}

// ProfileView lists an actor with the issues and comments they authored.
type ProfileView struct {
	User     identity.User
	Issues   []store.Issue
	Comments []store.AuthoredComment
}

// MinistriesView is the ministry directory with its resolution totals.
type MinistriesView struct {
	Ministries []store.Ministry
	Managed    int
	Resolved   int
}

// DistrictsView is the district directory with its report totals.
type DistrictsView struct {
	Districts  []store.District
	Reported   int
	Resolved   int
	Population int
}

// NarrationBlock names which part of an issue to read aloud.
type NarrationBlock string

const (
	BlockCard        NarrationBlock = "card"
	BlockDescription NarrationBlock = "description"
)

type Option func(*Service)

func WithMedia(m mediaResolver) Option {
	return func(s *Service) { s.media = m }
}

func WithMetrics(r recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

type Service struct {
	cfg       config.Config
	store     dataStore
	search    searchService
	narration narrationMachine
	media     mediaResolver
	metrics   recorder
	clock     func() time.Time
}

func New(cfg config.Config, dataStore *store.MemoryStore, searchSvc *search.Service, machine *narration.Machine, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		search:    searchSvc,
		narration: machine,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) role() rbac.Role {
	return rbac.RoleFor(s.cfg.Admin)
}

func (s *Service) Settings() Settings {
	return Settings{ActorID: s.cfg.ActorID, Role: s.role(), Admin: s.cfg.Admin, DarkMode: s.cfg.DarkMode}
}

// Bootstrap loads the dataset and mirrors it to the search index.
func (s *Service) Bootstrap(ctx context.Context, data store.Dataset) error {
	if err := s.store.Load(ctx, data); err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if _, err := s.store.GetActor(ctx, s.cfg.ActorID); err != nil {
		return fmt.Errorf("current actor %s: %w", s.cfg.ActorID, err)
	}
	s.search.ReindexAll(ctx)
	return nil
}

func (s *Service) CurrentActor(ctx context.Context) (identity.User, error) {
	return s.store.GetActor(ctx, s.cfg.ActorID)
}

// Home lists the issue feed, optionally narrowed to one category. Counts
// always cover the whole collection.
func (s *Service) Home(ctx context.Context, category store.Category) (HomeView, error) {
	if category != "" && !category.Valid() {
		return HomeView{}, apperr.Validation("unknown category "+string(category), "category")
	}
	var pred store.Predicate
	if category != "" {
		pred = func(issue store.Issue) bool { return issue.Category == category }
	}
	issues, err := s.store.ListIssues(ctx, pred)
	if err != nil {
		return HomeView{}, err
	}
	counts, err := s.store.CategoryCounts(ctx)
	if err != nil {
		return HomeView{}, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return HomeView{Issues: issues, Counts: counts, Total: total}, nil
}

func (s *Service) Issue(ctx context.Context, issueID string) (IssueDetail, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return IssueDetail{}, err
	}
	detail := IssueDetail{
		Issue:   issue,
		Author:  issue.DisplayAuthor(),
		Media:   issue.Media,
		Created: issue.CreatedLabel(s.clock()),
	}
	if s.media != nil {
		resolved, err := s.media.Resolve(ctx, issue.Media)
		if err != nil {
			log.Printf("app: resolve media for %s: %v", issueID, err)
		} else {
			detail.Media = resolved
		}
	}
	return detail, nil
}

// Report submits a new issue authored by the current actor.
func (s *Service) Report(ctx context.Context, draft store.IssueDraft) (store.Issue, error) {
	issue, err := s.store.CreateIssue(ctx, draft, s.cfg.ActorID)
	if err != nil {
		return store.Issue{}, err
	}
	if s.metrics != nil {
		s.metrics.IssueCreated()
	}
	s.search.IndexIssues(issue)
	return issue, nil
}

func (s *Service) Comment(ctx context.Context, issueID, text string) (store.Comment, error) {
	comment, err := s.store.AddComment(ctx, issueID, s.cfg.ActorID, text)
	if err != nil {
		return store.Comment{}, err
	}
	if s.metrics != nil {
		s.metrics.CommentAdded()
	}
	return comment, nil
}

// SetStatus moves an issue to status. Only admins may change status.
func (s *Service) SetStatus(ctx context.Context, issueID string, status store.Status) (store.Issue, error) {
	if !rbac.Can(s.role(), rbac.ActionChangeStatus) {
		return store.Issue{}, apperr.Forbidden("only administrators can change issue status")
	}
	issue, err := s.store.UpdateIssue(ctx, issueID, store.IssuePatch{Status: &status})
	if err != nil {
		return store.Issue{}, err
	}
	if s.metrics != nil {
		s.metrics.StatusChanged(string(status))
	}
	s.search.IndexIssues(issue)
	return issue, nil
}

// Profile returns the profile page of actorID, or of the current actor when
// actorID is blank.
func (s *Service) Profile(ctx context.Context, actorID string) (ProfileView, error) {
	if strings.TrimSpace(actorID) == "" {
		actorID = s.cfg.ActorID
	}
	user, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return ProfileView{}, err
	}
	issues, err := s.store.IssuesByAuthor(ctx, actorID)
	if err != nil {
		return ProfileView{}, err
	}
	if actorID != s.cfg.ActorID {
		issues = publicIssues(issues)
	}
	comments, err := s.store.CommentsByAuthor(ctx, actorID)
	if err != nil {
		return ProfileView{}, err
	}
	return ProfileView{User: user, Issues: issues, Comments: comments}, nil
}

// publicIssues drops anonymous reports; only their author may see them on a
// profile page.
func publicIssues(issues []store.Issue) []store.Issue {
	out := issues[:0:0]
	for _, issue := range issues {
		if !issue.IsAnonymous {
			out = append(out, issue)
		}
	}
	return out
}

// EditProfile applies patch to the current actor. Every issue and comment
// they authored reflects the change on its next read.
func (s *Service) EditProfile(ctx context.Context, patch identity.Patch) (identity.User, error) {
	if patch.Empty() {
		return s.CurrentActor(ctx)
	}
	user, err := s.store.UpdateActorProfile(ctx, s.cfg.ActorID, patch)
	if err != nil {
		return identity.User{}, err
	}
	if s.metrics != nil {
		s.metrics.ProfileEdited()
	}
	if authored, err := s.store.IssuesByAuthor(ctx, user.ID); err == nil {
		s.search.IndexIssues(publicIssues(authored)...)
	}
	return user, nil
}

func (s *Service) Ministries(ctx context.Context) (MinistriesView, error) {
	ministries, err := s.store.Ministries(ctx)
	if err != nil {
		return MinistriesView{}, err
	}
	view := MinistriesView{Ministries: ministries}
	for _, m := range ministries {
		view.Managed += m.IssuesManaged
		view.Resolved += m.IssuesResolved
	}
	return view, nil
}

func (s *Service) Districts(ctx context.Context) (DistrictsView, error) {
	districts, err := s.store.Districts(ctx)
	if err != nil {
		return DistrictsView{}, err
	}
	view := DistrictsView{Districts: districts}
	for _, d := range districts {
		view.Reported += d.IssuesReported
		view.Resolved += d.IssuesResolved
		view.Population += d.Population
	}
	return view, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	return s.search.Search(ctx, q)
}

// Narrate toggles narration of one block of an issue: a second call for the
// block being spoken stops it.
func (s *Service) Narrate(ctx context.Context, issueID string, block NarrationBlock, onEnd narration.EndFunc) (uint64, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return 0, err
	}
	switch block {
	case BlockCard, "":
		return s.narration.Toggle(narration.CardBlockID(issue.ID), narration.IssueCardText(issue), onEnd)
	case BlockDescription:
		return s.narration.Toggle(narration.DescriptionBlockID(issue.ID), narration.DescriptionText(issue), onEnd)
	default:
		return 0, apperr.Validation(fmt.Sprintf("unknown narration block %q", block), "block")
	}
}

func (s *Service) StopNarration() bool {
	return s.narration.Stop()
}

func (s *Service) NarrationState() narration.Snapshot {
	return s.narration.Snapshot()
}

// Ready reports whether the repository can serve reads.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
