package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kobomedia/pkg/harvester"
	"kobomedia/pkg/history"
	"kobomedia/pkg/storage"
	"kobomedia/pkg/ui"
)

const (
	defaultRunListLimit = 20
	// archiveLinkTTL bounds the token carried by a result page's download link
	archiveLinkTTL = 15 * time.Minute
)

// runRequest is the JSON body of POST /runs. Missing fields keep the
// configured defaults.
type runRequest struct {
	AssetUID      *string  `json:"asset_uid"`
	QuestionNames *string  `json:"question_names"`
	Limit         *int     `json:"limit"`
	Query         *string  `json:"query"`
	ChunkSize     *int     `json:"chunk_size"`
	Throttle      *float64 `json:"throttle"`
	Verbosity     *int     `json:"verbosity"`
}

type runResponse struct {
	RunID        string          `json:"run_id,omitempty"`
	AssetUID     string          `json:"asset_uid"`
	Status       string          `json:"status"`
	Stats        harvester.Stats `json:"stats"`
	ArchiveURL   string          `json:"archive_url,omitempty"`
	PublishedURL string          `json:"published_url,omitempty"`
	Warning      string          `json:"warning,omitempty"`
	Error        string          `json:"error,omitempty"`
	Log          []string        `json:"log"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.recentRuns(r, limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) recentRuns(r *http.Request, limit int) ([]history.Run, error) {
	if s.runs == nil {
		return []history.Run{}, nil
	}
	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return runs, nil
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseRunRequest(r)
	if err != nil {
		s.respondRun(w, r, http.StatusBadRequest, opts, runResponse{Status: "rejected", Error: err.Error()})
		return
	}
	if err := opts.Validate(); err != nil {
		s.respondRun(w, r, http.StatusBadRequest, opts, runResponse{
			AssetUID: opts.AssetUID,
			Status:   "rejected",
			Error:    err.Error(),
		})
		return
	}

	transcript := ui.NewTranscript()
	result, err := s.runner.Run(r.Context(), opts, transcript)

	// the transcript holds the last totals even when no result comes back
	resp := runResponse{AssetUID: opts.AssetUID, Stats: transcript.Stats(), Log: transcript.Lines()}
	if resp.Log == nil {
		resp.Log = []string{}
	}
	if result != nil {
		resp.RunID = result.RunID
		resp.Status = result.Status()
		resp.Stats = result.Stats
		resp.PublishedURL = result.PublishedURL
		if result.ArchivePath != "" {
			resp.ArchiveURL = s.archiveURL(filepath.Base(result.ArchivePath))
		}
		if result.WalkErr != nil {
			resp.Warning = result.WalkErr.Error()
		} else if result.PublishErr != nil {
			resp.Warning = "publish failed: " + result.PublishErr.Error()
		}
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrRunInProgress) {
			status = http.StatusConflict
		}
		if resp.Status == "" {
			resp.Status = "failed"
		}
		resp.Error = err.Error()
		s.logger.WithError(err).WithField("asset_uid", opts.AssetUID).Warn("dashboard run failed")
		s.respondRun(w, r, status, opts, resp)
		return
	}

	s.respondRun(w, r, http.StatusOK, opts, resp)
}

// archiveURL links the archive file. With auth enabled the link carries a
// short-lived token that opens only this archive.
func (s *Server) archiveURL(file string) string {
	link := "/archives/" + url.PathEscape(file)
	secret := s.config.Dashboard.JWTSecret
	if secret == "" {
		return link
	}
	token, err := GenerateArchiveToken(secret, file, archiveLinkTTL)
	if err != nil {
		s.logger.WithError(err).Warn("failed to sign archive link")
		return link
	}
	return link + "?" + url.Values{"access_token": {token}}.Encode()
}

// respondRun answers browsers posting the HTML form with the page and
// everyone else with JSON. The page keeps the submitted inputs.
func (s *Server) respondRun(w http.ResponseWriter, r *http.Request, status int, opts harvester.Options, resp runResponse) {
	if !wantsHTML(r) {
		writeJSON(w, status, resp)
		return
	}
	s.renderIndex(w, r, status, &opts, &resp)
}

func wantsHTML(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType != "application/json" && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (s *Server) parseRunRequest(r *http.Request) (harvester.Options, error) {
	opts := harvester.OptionsFromConfig(s.config, "")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return opts, fmt.Errorf("invalid JSON body: %w", err)
		}
		req.apply(&opts)
		return opts, nil
	}

	if err := r.ParseForm(); err != nil {
		return opts, fmt.Errorf("invalid form: %w", err)
	}
	if err := applyForm(r, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}

func (req runRequest) apply(opts *harvester.Options) {
	if req.AssetUID != nil {
		opts.AssetUID = strings.TrimSpace(*req.AssetUID)
	}
	if req.QuestionNames != nil {
		opts.QuestionNames = *req.QuestionNames
	}
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	if req.Query != nil {
		opts.Query = *req.Query
	}
	if req.ChunkSize != nil {
		opts.ChunkSize = *req.ChunkSize
	}
	if req.Throttle != nil {
		opts.Throttle = secondsToDuration(*req.Throttle)
	}
	if req.Verbosity != nil {
		opts.Verbosity = *req.Verbosity
	}
}

func applyForm(r *http.Request, opts *harvester.Options) error {
	form := r.Form
	opts.AssetUID = strings.TrimSpace(form.Get("asset_uid"))
	if form.Has("question_names") {
		opts.QuestionNames = form.Get("question_names")
	}
	if form.Has("query") {
		opts.Query = form.Get("query")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"limit", &opts.Limit},
		{"chunk_size", &opts.ChunkSize},
		{"verbosity", &opts.Verbosity},
	}
	for _, field := range ints {
		raw := strings.TrimSpace(form.Get(field.key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", field.key, raw)
		}
		*field.dst = n
	}

	if raw := strings.TrimSpace(form.Get("throttle")); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("throttle must be a number of seconds, got %q", raw)
		}
		opts.Throttle = secondsToDuration(secs)
	}
	return nil
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	assetUID, ok := strings.CutSuffix(file, ".zip")
	if !ok || assetUID == "" || assetUID == "." || assetUID == ".." || strings.ContainsAny(assetUID, `/\`) {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}

	path := filepath.Join(s.config.Output.ArchiveDirectory, file)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file}))
	http.ServeFile(w, r, path)
}
