// Package seed loads the startup dataset from YAML.
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

//go:embed mock.yaml
var mockYAML []byte

type file struct {
	Actors     []identity.User  `yaml:"actors"`
	Issues     []issueEntry     `yaml:"issues"`
	Ministries []store.Ministry `yaml:"ministries"`
	Districts  []store.District `yaml:"districts"`
}

type issueEntry struct {
	ID          string             `yaml:"id"`
	Title       string             `yaml:"title"`
	Summary     string             `yaml:"summary"`
	Description string             `yaml:"description"`
	Author      string             `yaml:"author"`
	Anonymous   bool               `yaml:"anonymous"`
	Category    store.Category     `yaml:"category"`
	Location    string             `yaml:"location"`
	Coordinates *store.Coordinates `yaml:"coordinates"`
	Age         string             `yaml:"age"`
	Status      store.Status       `yaml:"status"`
	Priority    store.Priority     `yaml:"priority"`
	Media       store.Media        `yaml:"media"`
	Comments    []commentEntry     `yaml:"comments"`
}

type commentEntry struct {
	ID     string `yaml:"id"`
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
	Age    string `yaml:"age"`
}

// Default returns the embedded mock dataset with ages resolved against now.
func Default(now time.Time) (store.Dataset, error) {
	return Parse(mockYAML, now)
}

// LoadFile reads a dataset from path, or the embedded one when path is empty.
func LoadFile(path string, now time.Time) (store.Dataset, error) {
	if path == "" {
		return Default(now)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Dataset{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data, now)
}

// Parse decodes a dataset. Authors are referenced by actor id; unknown ids
// and unknown fields are errors.
func Parse(data []byte, now time.Time) (store.Dataset, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return store.Dataset{}, fmt.Errorf("decode seed: %w", err)
	}

	actors := make(map[string]identity.User, len(f.Actors))
	for _, a := range f.Actors {
		if a.AvatarGlyph == "" {
			a.AvatarGlyph = identity.GlyphFor(a.DisplayName)
		}
		actors[a.ID] = a
	}
	lookup := func(id string) (identity.User, error) {
		a, ok := actors[id]
		if !ok {
			return identity.User{}, fmt.Errorf("unknown actor %q", id)
		}
		return a, nil
	}

	ds := store.Dataset{
		Actors:     make([]identity.User, 0, len(f.Actors)),
		Issues:     make([]store.Issue, 0, len(f.Issues)),
		Ministries: f.Ministries,
		Districts:  f.Districts,
	}
	for _, a := range f.Actors {
		ds.Actors = append(ds.Actors, actors[a.ID])
	}

	for _, entry := range f.Issues {
		author, err := lookup(entry.Author)
		if err != nil {
			return store.Dataset{}, fmt.Errorf("issue %s: %w", entry.ID, err)
		}
		age, err := ParseAge(entry.Age)
		if err != nil {
			return store.Dataset{}, fmt.Errorf("issue %s: %w", entry.ID, err)
		}
		issue := store.Issue{
			ID:          entry.ID,
			Title:       entry.Title,
			Summary:     entry.Summary,
			Description: entry.Description,
			Author:      author,
			Category:    entry.Category,
			Location:    entry.Location,
			Coordinates: entry.Coordinates,
			CreatedAt:   now.Add(-age),
			Status:      entry.Status,
			Priority:    entry.Priority,
			Media:       entry.Media,
			IsAnonymous: entry.Anonymous,
		}
		for _, c := range entry.Comments {
			commenter, err := lookup(c.Author)
			if err != nil {
				return store.Dataset{}, fmt.Errorf("comment %s: %w", c.ID, err)
			}
			cage, err := ParseAge(c.Age)
			if err != nil {
				return store.Dataset{}, fmt.Errorf("comment %s: %w", c.ID, err)
			}
			issue.Comments = append(issue.Comments, store.Comment{ID: c.ID, Author: commenter, Text: c.Text, CreatedAt: now.Add(-cage)})
		}
		ds.Issues = append(ds.Issues, issue)
	}
	return ds, nil
}

// ParseAge accepts Go durations plus a day suffix, e.g. "30m", "20h", "5d".
// Blank means zero.
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}
