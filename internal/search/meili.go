package search

import (
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

const (
	idxIssues     = "civic_issues"
	idxMinistries = "civic_ministries"
	idxDistricts  = "civic_districts"
)

const healthInterval = 10 * time.Second

// IssueRecord is the data we mirror for an issue. Author is the projected
// display name, so anonymous reports never leak their real author.
type IssueRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Location    string `json:"location"`
	Author      string `json:"author"`
}

type MinistryRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type DistrictRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

func issueRecordFor(issue store.Issue) IssueRecord {
	return IssueRecord{
		ID:          issue.ID,
		Title:       issue.Title,
		Summary:     issue.Summary,
		Description: issue.Description,
		Category:    string(issue.Category),
		Status:      string(issue.Status),
		Priority:    string(issue.Priority),
		Location:    issue.Location,
		Author:      issue.DisplayAuthor().DisplayName,
	}
}

// Meili mirrors the corpus into Meilisearch for external consumers. The
// in-process engine never reads from it.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server leaves the mirror unhealthy until the health loop sees
// it recover.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxIssues,
			filterable: []string{"status", "category", "priority"},
			searchable: []string{"title", "summary", "description"},
		},
		{
			uid:        idxMinistries,
			searchable: []string{"name", "description"},
		},
		{
			uid:        idxDistricts,
			searchable: []string{"name", "region"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			filterable := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				filterable[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
				log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
			}
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexIssues adds or replaces issues in the mirror.
func (m *Meili) IndexIssues(issues []store.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	records := make([]IssueRecord, 0, len(issues))
	for _, issue := range issues {
		records = append(records, issueRecordFor(issue))
	}
	_, err := m.client.Index(idxIssues).AddDocuments(records, nil)
	if err != nil {
		m.healthy.Store(false)
	}
	return err
}

func (m *Meili) IndexMinistries(ministries []store.Ministry) error {
	if len(ministries) == 0 {
		return nil
	}
	records := make([]MinistryRecord, 0, len(ministries))
	for _, b := range ministries {
		records = append(records, MinistryRecord{ID: b.ID, Name: b.Name, Description: b.Description})
	}
	_, err := m.client.Index(idxMinistries).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexDistricts(districts []store.District) error {
	if len(districts) == 0 {
		return nil
	}
	records := make([]DistrictRecord, 0, len(districts))
	for _, d := range districts {
		records = append(records, DistrictRecord{ID: d.ID, Name: d.Name, Region: d.Region})
	}
	_, err := m.client.Index(idxDistricts).AddDocuments(records, nil)
	return err
}
