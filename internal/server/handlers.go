package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/spotUP/DEViLBOX-sub001/internal/format"
)

const maxUploadSize = 64 * 1024 * 1024 // 64MB

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleFormats lists the registered formats in detection priority order.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.registry.Formats()))
	for _, f := range s.registry.Formats() {
		names = append(names, f.Name())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"formats": names})
}

// handleIdentify runs detection only and reports the matched format.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readModule(w, r)
	if !ok {
		return
	}

	f, err := s.registry.Identify(data, filename)
	if err != nil {
		if errors.Is(err, format.ErrUnrecognized) {
			s.writeError(w, http.StatusUnprocessableEntity, "unrecognized module format")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"format":   f.Name(),
		"filename": filename,
		"size":     len(data),
	})
}

// handleConvert accepts a module upload and starts a conversion job.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readModule(w, r)
	if !ok {
		return
	}

	job := s.jobs.Create(filename)
	go s.jobs.Process(job, data)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     job.ID,
		"status": StatusPending,
	})
}

// handleJob returns current job status.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	view := job.Snapshot()
	body := map[string]any{
		"id":       view.ID,
		"filename": view.Filename,
		"status":   view.Status,
		"stage":    view.Stage,
	}
	if view.Error != "" {
		body["error"] = view.Error
	}
	if view.Result != nil {
		body["format"] = view.Result.Format
		body["cache_key"] = view.Result.CacheKey
		body["from_cache"] = view.Result.FromCache
		body["song_url"] = fmt.Sprintf("/jobs/%s/song", view.ID)
	}
	s.writeJSON(w, http.StatusOK, body)
}

// handleSong serves the converted canonical song as a JSON download.
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	view := job.Snapshot()
	if view.Status != StatusComplete || view.Result == nil {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", view.Status))
		return
	}

	base := strings.TrimSuffix(filepath.Base(view.Filename), filepath.Ext(view.Filename))
	if base == "" {
		base = "song"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".json"))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view.Result.Song); err != nil {
		s.logger.Error("song encode failed", "job", view.ID, "error", err)
	}
}

// readModule extracts the uploaded module bytes from a multipart form. It
// writes the error response itself on failure.
func (s *Server) readModule(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "upload too large or not multipart")
		return nil, "", false
	}

	file, header, err := r.FormFile("module")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, `missing "module" form file`)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read upload")
		return nil, "", false
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty upload")
		return nil, "", false
	}

	return data, header.Filename, true
}

// writeJSON renders a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError renders a JSON error message.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
