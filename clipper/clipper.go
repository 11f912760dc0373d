// CLAUDE:SUMMARY Clipper service: dedup-and-upsert saves, offline queue flushing, block/comment passthroughs.
// Package clipper implements the save/sync engine behind the web
// clipper: deciding whether a capture creates or updates a record,
// parking failed writes in a durable queue for later retry, and
// dispatching the whitelisted mutations an AI reply may request.
package clipper

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/webclip/clipd/clipper/internal/queue"
	"github.com/webclip/clipd/clipper/internal/settings"
	"github.com/webclip/clipd/llm"
	"github.com/webclip/clipd/notion"
)

// RecordStore is the subset of the Notion client the service uses.
type RecordStore interface {
	CreatePage(ctx context.Context, data notion.PageData) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, data notion.PageData) (*notion.Page, error)
	QueryByURL(ctx context.Context, url string) ([]notion.QueryPage, error)
	AppendImageBlocks(ctx context.Context, pageID string, urls []string) (json.RawMessage, error)
	AppendTextBlocks(ctx context.Context, pageID, text string) (int, json.RawMessage, error)
	AddComment(ctx context.Context, pageID, text string) (json.RawMessage, error)
}

// Completer is the subset of the LLM client the service uses.
type Completer interface {
	Complete(ctx context.Context, turns []llm.Turn) (string, error)
}

// Service is the clipper engine. Credentials live in the settings store,
// so clients are rebuilt from a fresh snapshot on every operation.
type Service struct {
	cfg      Config
	settings *settings.Store
	queue    *queue.Queue
	logger   *slog.Logger

	// Factories, replaceable in tests.
	newStore func(snap settings.Snapshot) RecordStore
	newLLM   func(snap settings.Snapshot) Completer
	online   func() bool
}

// New creates the service and ensures its tables exist.
func New(ctx context.Context, cfg Config, db *sql.DB, logger *slog.Logger) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		settings: settings.New(db),
		queue:    queue.New(db, logger),
		logger:   logger,
		online:   func() bool { return true },
	}
	s.newStore = func(snap settings.Snapshot) RecordStore {
		opts := []notion.Option{
			notion.WithLogger(logger),
			notion.WithTimeout(cfg.RequestTimeout),
		}
		if cfg.NotionBaseURL != "" {
			opts = append(opts, notion.WithBaseURL(cfg.NotionBaseURL))
		}
		return notion.New(snap.NotionAPIKey, snap.NotionDatabaseID, opts...)
	}
	s.newLLM = func(snap settings.Snapshot) Completer {
		var opts []llm.Option
		if cfg.LLMBaseURL != "" {
			opts = append(opts, llm.WithBaseURL(cfg.LLMBaseURL))
		}
		return llm.New(snap.OpenAIAPIKey, snap.AIModel, opts...)
	}

	if err := s.settings.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("clipper: settings schema: %w", err)
	}
	if err := s.queue.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("clipper: queue schema: %w", err)
	}
	return s, nil
}

// queuedWrite is the persisted form of a failed save attempt.
type queuedWrite struct {
	PageID string          `json:"page_id,omitempty"`
	Data   notion.PageData `json:"data"`
}

// SavePage saves a capture, creating or updating a record.
//
// Decision matrix: a known PageID updates in place; ForceNew discards
// the known PageID so a fresh record is created; no PageID always
// creates. Duplicate detection is CheckPage's job, before the save.
//
// A remote failure does not surface as an error: the write is parked in
// the offline queue and the save reports Queued. Only missing
// credentials fail immediately, since retrying cannot fix those.
func (s *Service) SavePage(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.Page == nil || req.Page.URL == "" {
		return nil, fmt.Errorf("%w: page with url required", ErrInvalidInput)
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Configured() {
		return nil, ErrNotConfigured
	}

	data := req.Page.PageData(req.Note)
	data.SessionID = req.SessionID
	pageID := req.PageID
	if req.ForceNew {
		pageID = ""
	}

	savedID, err := s.submitWrite(ctx, s.newStore(snap), pageID, data)
	if err == nil {
		return &SaveResult{PageID: savedID, Message: "Saved to Notion."}, nil
	}

	payload, merr := json.Marshal(queuedWrite{PageID: pageID, Data: data})
	if merr != nil {
		return nil, fmt.Errorf("clipper: marshal queued write: %w", merr)
	}
	if _, qerr := s.queue.Enqueue(ctx, payload, pageID); qerr != nil {
		s.logger.Error("clipper: enqueue after failed save", "url", req.Page.URL, "error", qerr)
		return nil, err
	}
	s.logger.Warn("clipper: save failed, queued for retry", "url", req.Page.URL, "error", err)
	return &SaveResult{Queued: true, Message: "Offline: saved locally, will sync to Notion later."}, nil
}

// submitWrite performs one remote write. A known pageID updates that
// record; no pageID always creates, even when a record with the same
// URL already exists (otherwise force-new could never duplicate a URL).
func (s *Service) submitWrite(ctx context.Context, store RecordStore, pageID string, data notion.PageData) (string, error) {
	if pageID != "" {
		p, err := store.UpdatePage(ctx, pageID, data)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	}

	p, err := store.CreatePage(ctx, data)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// CheckPage reports whether a URL is already saved. Lookup failures are
// swallowed: the page is reported as unseen rather than blocking a save.
func (s *Service) CheckPage(ctx context.Context, url string) (*CheckResult, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url required", ErrInvalidInput)
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Configured() {
		return nil, ErrNotConfigured
	}

	matches, err := s.newStore(snap).QueryByURL(ctx, url)
	if err != nil {
		s.logger.Warn("clipper: check lookup failed", "url", url, "error", err)
		return &CheckResult{Exists: false}, nil
	}
	if len(matches) == 0 {
		return &CheckResult{Exists: false}, nil
	}

	first := matches[0]
	summary := "Saved " + formatDate(first.CreatedTime)
	if d := first.DescriptionText(); d != "" {
		summary += fmt.Sprintf(" with note: %q", d)
	}
	return &CheckResult{Exists: true, Summary: summary, PageID: first.ID}, nil
}

// AddComment posts a comment on a synced page.
func (s *Service) AddComment(ctx context.Context, pageID, text string) error {
	if pageID == "" || text == "" {
		return fmt.Errorf("%w: page_id and text required", ErrInvalidInput)
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.Configured() {
		return ErrNotConfigured
	}
	_, err = s.newStore(snap).AddComment(ctx, pageID, text)
	return err
}

// AppendImages appends one external image block per URL to a page.
func (s *Service) AppendImages(ctx context.Context, pageID string, urls []string) error {
	if pageID == "" || len(urls) == 0 {
		return fmt.Errorf("%w: page_id and urls required", ErrInvalidInput)
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.Configured() {
		return ErrNotConfigured
	}
	_, err = s.newStore(snap).AppendImageBlocks(ctx, pageID, urls)
	return err
}

// AppendText appends one paragraph block per non-blank line of text and
// returns the number of blocks added.
func (s *Service) AppendText(ctx context.Context, pageID, text string) (int, error) {
	if pageID == "" || text == "" {
		return 0, fmt.Errorf("%w: page_id and text required", ErrInvalidInput)
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if !snap.Configured() {
		return 0, ErrNotConfigured
	}
	n, _, err := s.newStore(snap).AppendTextBlocks(ctx, pageID, text)
	return n, err
}

// FlushQueue runs one retry pass over the offline queue. It is a no-op
// when offline or unconfigured. Corrupt entries are dropped; they can
// never succeed.
func (s *Service) FlushQueue(ctx context.Context) error {
	if !s.online() {
		s.logger.Debug("clipper: offline, skipping queue pass")
		return nil
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.Configured() {
		return nil
	}

	store := s.newStore(snap)
	dropped, kept, err := s.queue.ProcessAll(ctx, func(ctx context.Context, e queue.Entry) error {
		var w queuedWrite
		if uerr := json.Unmarshal(e.Payload, &w); uerr != nil {
			s.logger.Error("clipper: dropping corrupt queue entry", "id", e.ID, "error", uerr)
			return nil
		}
		_, serr := s.submitWrite(ctx, store, w.PageID, w.Data)
		return serr
	})
	if dropped > 0 || kept > 0 {
		s.logger.Info("clipper: queue pass", "dropped", dropped, "kept", kept)
	}
	return err
}

// QueueEntries returns the pending offline writes in FIFO order.
func (s *Service) QueueEntries(ctx context.Context) ([]queue.Entry, error) {
	return s.queue.Entries(ctx)
}

// QueueLen returns the number of pending offline writes.
func (s *Service) QueueLen(ctx context.Context) (int, error) {
	return s.queue.Len(ctx)
}

// Settings returns the current settings snapshot.
func (s *Service) Settings(ctx context.Context) (settings.Snapshot, error) {
	return s.settings.Snapshot(ctx)
}

// SetSetting updates one settings key.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	switch key {
	case settings.KeyNotionAPIKey, settings.KeyNotionDatabaseID,
		settings.KeyOpenAIAPIKey, settings.KeyAIModel:
		return s.settings.Set(ctx, key, value)
	}
	return fmt.Errorf("%w: unknown setting %q", ErrInvalidInput, key)
}

// Start runs the periodic queue processor until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	s.logger.Info("clipper: queue processor started", "interval", s.cfg.FlushInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("clipper: queue processor stopped")
			return
		case <-ticker.C:
			if err := s.FlushQueue(ctx); err != nil {
				s.logger.Warn("clipper: queue pass failed", "error", err)
			}
		}
	}
}

// formatDate renders a store timestamp for the dedup summary.
func formatDate(created string) string {
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return created
	}
	return t.Format("Jan 2, 2006")
}
