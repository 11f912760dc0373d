// CLAUDE:SUMMARY HTTP surface for the clipper: save/check/ask/append endpoints, settings and queue views.
package clipper

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webclip/clipd/capture"
	"github.com/webclip/clipd/clipper/internal/queue"
	"github.com/webclip/clipd/llm"
	"github.com/webclip/clipd/notion"
)

// RegisterHTTP registers the clipper endpoints on a chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/api/v1/save", s.handleSave)
	r.Post("/api/v1/check", s.handleCheck)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/comment", s.handleComment)
	r.Post("/api/v1/blocks/images", s.handleAppendImages)
	r.Post("/api/v1/blocks/text", s.handleAppendText)
	r.Post("/api/v1/capture", s.handleCapture)
	r.Get("/api/v1/settings", s.handleGetSettings)
	r.Put("/api/v1/settings", s.handlePutSettings)
	r.Get("/api/v1/queue", s.handleQueue)
	r.Post("/api/v1/queue/flush", s.handleFlush)
}

func (s *Service) handleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.SavePage(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := map[string]any{"success": true, "result": res}
	if res.Queued {
		out["queued"] = true
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.CheckPage(r.Context(), req.URL)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"exists":  res.Exists,
		"summary": res.Summary,
		"page_id": res.PageID,
	})
}

func (s *Service) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page     *capture.Page `json:"page,omitempty"`
		PageID   string        `json:"page_id,omitempty"`
		Messages []llm.Turn    `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.Converse(r.Context(), req.Page, req.PageID, req.Messages)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reply": res.Reply, "messages": res.Turns})
}

func (s *Service) handleComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageID string `json:"page_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.AddComment(r.Context(), req.PageID, req.Text); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Service) handleAppendImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageID string   `json:"page_id"`
		URLs   []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.AppendImages(r.Context(), req.PageID, req.URLs); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(req.URLs)})
}

func (s *Service) handleAppendText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageID string `json:"page_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := s.AppendText(r.Context(), req.PageID, req.Text)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": n})
}

// handleCapture extracts page metadata from raw HTML, for callers that
// cannot run the extraction themselves.
func (s *Service) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HTML     string `json:"html"`
		URL      string `json:"url"`
		Markdown bool   `json:"markdown"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.HTML == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("html and url required"))
		return
	}
	page, err := capture.FromHTML(req.HTML, req.URL)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	out := map[string]any{"success": true, "page": page}
	if req.Markdown {
		md, err := capture.MarkdownBody(req.HTML)
		if err != nil {
			s.logger.Warn("clipper: markdown conversion failed", "url", req.URL, "error", err)
		} else {
			out["markdown"] = md
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Settings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// Secrets are reported by presence only.
	writeJSON(w, http.StatusOK, map[string]any{
		"configured":      snap.Configured(),
		"notion_api_key":  snap.NotionAPIKey != "",
		"notion_database": snap.NotionDatabaseID,
		"openai_api_key":  snap.OpenAIAPIKey != "",
		"ai_model":        snap.AIModel,
	})
}

func (s *Service) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for key, value := range req {
		if err := s.SetSetting(r.Context(), key, value); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Service) handleQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.QueueEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []queue.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

func (s *Service) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.FlushQueue(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	n, err := s.QueueLen(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "remaining": n})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var apiErr *notion.APIError
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrNoOpenAIKey):
		return http.StatusPreconditionFailed
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"success": false, "error": err.Error()})
}
