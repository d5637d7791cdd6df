package search

import (
	"context"
	"fmt"
	"log"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

// Source supplies the corpus. The repository implements it.
type Source interface {
	ListIssues(ctx context.Context, pred store.Predicate) ([]store.Issue, error)
	Ministries(ctx context.Context) ([]store.Ministry, error)
	Districts(ctx context.Context) ([]store.District, error)
}

// Observer receives one call per executed search.
type Observer interface {
	SearchRun(scope string, hits int)
}

// Response is the envelope returned to presentation.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Service runs the engine over the live repository and keeps the optional
// Meilisearch mirror up to date.
type Service struct {
	source   Source
	meili    *Meili
	observer Observer
}

// NewService creates a search service. meili and observer may be nil.
func NewService(source Source, meili *Meili, observer Observer) *Service {
	return &Service{source: source, meili: meili, observer: observer}
}

// Corpus reads the current collections from the source.
func (s *Service) Corpus(ctx context.Context) (Corpus, error) {
	issues, err := s.source.ListIssues(ctx, nil)
	if err != nil {
		return Corpus{}, fmt.Errorf("load issues: %w", err)
	}
	ministries, err := s.source.Ministries(ctx)
	if err != nil {
		return Corpus{}, fmt.Errorf("load ministries: %w", err)
	}
	districts, err := s.source.Districts(ctx)
	if err != nil {
		return Corpus{}, fmt.Errorf("load districts: %w", err)
	}
	return Corpus{Issues: issues, Bodies: ministries, Regions: districts}, nil
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	corpus, err := s.Corpus(ctx)
	if err != nil {
		return Response{}, err
	}
	results := Search(corpus, q)
	if s.observer != nil {
		scope := q.Scope
		if scope == "" {
			scope = ScopeAll
		}
		s.observer.SearchRun(string(scope), len(results))
	}
	return Response{Results: results, Total: len(results), Query: q.Text}, nil
}

func (s *Service) mirrorReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// IndexIssues mirrors issues to Meilisearch (fire-and-forget).
func (s *Service) IndexIssues(issues ...store.Issue) {
	if !s.mirrorReady() || len(issues) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexIssues(issues); err != nil {
			log.Printf("search: index %d issues: %v", len(issues), err)
		}
	}()
}

// ReindexAll pushes the whole corpus to Meilisearch. Called at startup once
// the dataset is loaded.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.mirrorReady() {
		return
	}
	corpus, err := s.Corpus(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexIssues(corpus.Issues); err != nil {
		log.Printf("search: reindex issues: %v", err)
	}
	if err := s.meili.IndexMinistries(corpus.Bodies); err != nil {
		log.Printf("search: reindex ministries: %v", err)
	}
	if err := s.meili.IndexDistricts(corpus.Regions); err != nil {
		log.Printf("search: reindex districts: %v", err)
	}
}
