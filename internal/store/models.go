package store

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
)

type Category string

const (
	CategoryInfrastructure Category = "Infrastructure"
	CategoryHealth         Category = "Health"
	CategoryEducation      Category = "Education"
	CategoryEnvironment    Category = "Environment"
	CategorySecurity       Category = "Security"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryInfrastructure,
	CategoryHealth,
	CategoryEducation,
	CategoryEnvironment,
	CategorySecurity,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusResolved Status = "Resolved"
)

var Statuses = []Status{StatusPending, StatusApproved, StatusResolved}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusResolved:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type Media struct {
	Photos []string `json:"photos" yaml:"photos"`
	Videos []string `json:"videos" yaml:"videos"`
	Audio  []string `json:"audio" yaml:"audio"`
}

func (m Media) clone() Media {
	return Media{
		Photos: append([]string{}, m.Photos...),
		Videos: append([]string{}, m.Videos...),
		Audio:  append([]string{}, m.Audio...),
	}
}

func (m Media) Count() int {
	return len(m.Photos) + len(m.Videos) + len(m.Audio)
}

type Comment struct {
	ID        string
	Author    identity.User
	Text      string
	CreatedAt time.Time
}

// CreatedLabel renders CreatedAt relative to now, e.g. "2 hours ago".
func (c Comment) CreatedLabel(now time.Time) string {
	return relativeLabel(c.CreatedAt, now)
}

// Issue is the read model: Author and every comment author are resolved
// from the actor table at read time.
type Issue struct {
	ID          string
	Title       string
	Summary     string
	Description string
	Author      identity.User
	Category    Category
	Location    string
	Coordinates *Coordinates
	CreatedAt   time.Time
	Status      Status
	Priority    Priority
	Media       Media
	IsAnonymous bool
	Comments    []Comment
}

// DisplayAuthor is the author every read path must render.
func (i Issue) DisplayAuthor() identity.User {
	return identity.Project(i.Author, i.IsAnonymous)
}

func (i Issue) CreatedLabel(now time.Time) string {
	return relativeLabel(i.CreatedAt, now)
}

// AuthoredComment is a comment listed on its author's profile together with
// the issue it belongs to.
type AuthoredComment struct {
	Comment
	IssueID    string
	IssueTitle string
}

// Ministry is an organizational body issues are routed to.
type Ministry struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description" yaml:"description"`
	Contact        string `json:"contact" yaml:"contact"`
	IssuesManaged  int    `json:"issuesManaged" yaml:"issuesManaged"`
	IssuesResolved int    `json:"issuesResolved" yaml:"issuesResolved"`
}

// ResolutionRate is the resolved share of managed issues, 0 when none are managed.
func (m Ministry) ResolutionRate() float64 {
	return rate(m.IssuesResolved, m.IssuesManaged)
}

// District is a region issues are reported from.
type District struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Region         string `json:"region" yaml:"region"`
	Population     int    `json:"population" yaml:"population"`
	IssuesReported int    `json:"issuesReported" yaml:"issuesReported"`
	IssuesResolved int    `json:"issuesResolved" yaml:"issuesResolved"`
}

func (d District) ResolutionRate() float64 {
	return rate(d.IssuesResolved, d.IssuesReported)
}

func rate(resolved, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(resolved) / float64(total)
}

// IssueDraft is the "submit report" input, entered by hand or suggested by
// an enrichment service.
type IssueDraft struct {
	Title       string
	Summary     string
	Description string
	Category    Category
	Location    string
	Coordinates *Coordinates
	Priority    Priority
	Media       Media
	Anonymous   bool
}

// IssuePatch lists editable issue fields. Nil fields are left alone.
type IssuePatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
}

func (p IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil
}

// Predicate selects issues in ListIssues. A nil Predicate selects all.
type Predicate func(Issue) bool

// Dataset is a full collection loaded at startup.
type Dataset struct {
	Actors     []identity.User
	Issues     []Issue
	Ministries []Ministry
	Districts  []District
}

func relativeLabel(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < time.Minute && !t.After(now) {
		return "Just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
