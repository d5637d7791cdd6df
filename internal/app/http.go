package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/narration"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/search"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

// WithMetricsHandler mounts h at /metrics.
func (s *HTTPServer) WithMetricsHandler(h http.Handler) *HTTPServer {
	s.metrics = h
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if r.URL.Path == "/metrics" && s.metrics != nil {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}
		if err := s.service.Ready(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		actor, err := s.service.CurrentActor(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		settings := s.service.Settings()
		writeJSON(w, http.StatusOK, map[string]any{
			"actor":    actor,
			"role":     settings.Role,
			"admin":    settings.Admin,
			"darkMode": settings.DarkMode,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "issues":
		s.handleIssues(w, r, parts[2:])
	case "profile":
		s.handleProfile(w, r, parts[2:])
	case "narration":
		s.handleNarration(w, r, parts[2:])
	case "ministries", "districts":
		if len(parts) != 2 || r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		s.handleDirectory(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleIssues(w http.ResponseWriter, r *http.Request, parts []string) {
	now := s.service.clock()

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			home, err := s.service.Home(r.Context(), store.Category(r.URL.Query().Get("category")))
			if err != nil {
				s.fail(w, r, err)
				return
			}
			items := make([]map[string]any, 0, len(home.Issues))
			for _, issue := range home.Issues {
				items = append(items, issueCardJSON(issue, now))
			}
			counts := make(map[string]int, len(home.Counts))
			for category, n := range home.Counts {
				counts[string(category)] = n
			}
			writeJSON(w, http.StatusOK, map[string]any{"issues": items, "counts": counts, "total": home.Total})
		case http.MethodPost:
			var body issueDraftBody
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			issue, err := s.service.Report(r.Context(), body.draft())
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"issue": issueCardJSON(issue, now)})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	issueID := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		detail, err := s.service.Issue(r.Context(), issueID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		payload := issueCardJSON(detail.Issue, now)
		payload["media"] = detail.Media
		payload["description"] = detail.Issue.Description
		comments := make([]map[string]any, 0, len(detail.Issue.Comments))
		for _, c := range detail.Issue.Comments {
			comments = append(comments, commentJSON(c, now))
		}
		payload["comments"] = comments
		writeJSON(w, http.StatusOK, map[string]any{"issue": payload})

	case len(parts) == 2 && parts[1] == "comments" && r.Method == http.MethodPost:
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.Comment(r.Context(), issueID, body.Text)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"comment": commentJSON(comment, now)})

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPut:
		var body struct {
			Status store.Status `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issue, err := s.service.SetStatus(r.Context(), issueID, body.Status)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issue": issueCardJSON(issue, now)})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) <= 1:
		actorID := ""
		if len(parts) == 1 {
			actorID = parts[0]
		}
		view, err := s.service.Profile(r.Context(), actorID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		now := s.service.clock()
		issues := make([]map[string]any, 0, len(view.Issues))
		for _, issue := range view.Issues {
			issues = append(issues, issueCardJSON(issue, now))
		}
		comments := make([]map[string]any, 0, len(view.Comments))
		for _, c := range view.Comments {
			item := commentJSON(c.Comment, now)
			item["issueId"] = c.IssueID
			item["issueTitle"] = c.IssueTitle
			comments = append(comments, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": view.User, "issues": issues, "comments": comments})

	case r.Method == http.MethodPut && len(parts) == 0:
		var body profileEditBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.EditProfile(r.Context(), body.patch())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDirectory(w http.ResponseWriter, r *http.Request, kind string) {
	if kind == "ministries" {
		view, err := s.service.Ministries(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items := make([]map[string]any, 0, len(view.Ministries))
		for _, m := range view.Ministries {
			items = append(items, map[string]any{
				"id":             m.ID,
				"name":           m.Name,
				"description":    m.Description,
				"contact":        m.Contact,
				"issuesManaged":  m.IssuesManaged,
				"issuesResolved": m.IssuesResolved,
				"resolutionRate": m.ResolutionRate(),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ministries": items,
			"managed":    view.Managed,
			"resolved":   view.Resolved,
		})
		return
	}

	view, err := s.service.Districts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(view.Districts))
	for _, d := range view.Districts {
		items = append(items, map[string]any{
			"id":             d.ID,
			"name":           d.Name,
			"region":         d.Region,
			"population":     d.Population,
			"issuesReported": d.IssuesReported,
			"issuesResolved": d.IssuesResolved,
			"resolutionRate": d.ResolutionRate(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"districts":  items,
		"reported":   view.Reported,
		"resolved":   view.Resolved,
		"population": view.Population,
	})
}

func (s *HTTPServer) handleNarration(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, narrationJSON(s.service.NarrationState()))

	case len(parts) == 0 && r.Method == http.MethodDelete:
		stopped := s.service.StopNarration()
		writeJSON(w, http.StatusOK, map[string]any{"stopped": stopped})

	case len(parts) == 1 && r.Method == http.MethodPost:
		var body struct {
			Block NarrationBlock `json:"block"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if _, err := s.service.Narrate(r.Context(), parts[0], body.Block, nil); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, narrationJSON(s.service.NarrationState()))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	scope, err := search.ParseScope(values.Get("scope"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := search.Query{Text: values.Get("q"), Scope: scope}
	for _, status := range splitList(values.Get("status")) {
		q.Facets.Statuses = append(q.Facets.Statuses, store.Status(status))
	}
	for _, category := range splitList(values.Get("category")) {
		q.Facets.Categories = append(q.Facets.Categories, store.Category(category))
	}

	resp, err := s.service.Search(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status == http.StatusInternalServerError {
		log.Printf("app: request %s failed: %v", requestIDFrom(r.Context()), err)
	}
	writeError(w, status, code, message, details)
}

// profileEditBody is what a citizen may change about themselves. Verification
// is not self-service.
type profileEditBody struct {
	DisplayName    *string `json:"displayName"`
	AvatarGlyph    *string `json:"avatarGlyph"`
	AvatarImageRef *string `json:"avatarImageRef"`
	Location       *string `json:"location"`
}

func (b profileEditBody) patch() identity.Patch {
	return identity.Patch{
		DisplayName:    b.DisplayName,
		AvatarGlyph:    b.AvatarGlyph,
		AvatarImageRef: b.AvatarImageRef,
		Location:       b.Location,
	}
}

type issueDraftBody struct {
	Title       string             `json:"title"`
	Summary     string             `json:"summary"`
	Description string             `json:"description"`
	Category    store.Category     `json:"category"`
	Location    string             `json:"location"`
	Coordinates *store.Coordinates `json:"coordinates"`
	Priority    store.Priority     `json:"priority"`
	Media       store.Media        `json:"media"`
	Anonymous   bool               `json:"anonymous"`
}

func (b issueDraftBody) draft() store.IssueDraft {
	return store.IssueDraft{
		Title:       b.Title,
		Summary:     b.Summary,
		Description: b.Description,
		Category:    b.Category,
		Location:    b.Location,
		Coordinates: b.Coordinates,
		Priority:    b.Priority,
		Media:       b.Media,
		Anonymous:   b.Anonymous,
	}
}

// issueCardJSON never exposes the real author of an anonymous report.
func issueCardJSON(issue store.Issue, now time.Time) map[string]any {
	return map[string]any{
		"id":           issue.ID,
		"title":        issue.Title,
		"summary":      issue.Summary,
		"author":       issue.DisplayAuthor(),
		"category":     issue.Category,
		"location":     issue.Location,
		"coordinates":  issue.Coordinates,
		"createdAt":    issue.CreatedAt.UTC().Format(time.RFC3339),
		"createdLabel": issue.CreatedLabel(now),
		"status":       issue.Status,
		"priority":     issue.Priority,
		"isAnonymous":  issue.IsAnonymous,
		"commentCount": len(issue.Comments),
		"mediaCount":   issue.Media.Count(),
	}
}

func commentJSON(c store.Comment, now time.Time) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"author":       c.Author,
		"text":         c.Text,
		"createdAt":    c.CreatedAt.UTC().Format(time.RFC3339),
		"createdLabel": c.CreatedLabel(now),
	}
}

func narrationJSON(snap narration.Snapshot) map[string]any {
	return map[string]any{
		"state":     snap.State,
		"blockId":   snap.BlockID,
		"sessionId": snap.SessionID,
		"progress":  snap.Progress,
		"highlight": snap.Highlight,
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *apperr.DomainError
	if errors.As(err, &domainErr) {
		return statusFor(domainErr.Code), domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func statusFor(code string) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusUnprocessableEntity
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeCapabilityUnavailable:
		return http.StatusServiceUnavailable
	case apperr.CodeStaleSession:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
