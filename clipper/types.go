package clipper

import (
	"github.com/webclip/clipd/capture"
	"github.com/webclip/clipd/llm"
)

// SaveRequest is one save attempt for a captured page.
type SaveRequest struct {
	Page *capture.Page `json:"page"`

	// Note is the user's free-text annotation, prefixed to the description.
	Note string `json:"note,omitempty"`

	// PageID is the known record for this page view, when already synced.
	PageID string `json:"page_id,omitempty"`

	// SessionID groups captures from one browsing session, when the
	// caller tracks one.
	SessionID string `json:"session_id,omitempty"`

	// ForceNew creates a fresh record even when PageID is known.
	ForceNew bool `json:"force_new,omitempty"`
}

// SaveResult reports the outcome of a save attempt. Queued means the
// remote write failed and the payload was parked for retry; the save is
// still reported as accepted.
type SaveResult struct {
	PageID  string `json:"page_id,omitempty"`
	Queued  bool   `json:"queued,omitempty"`
	Message string `json:"message,omitempty"`
}

// CheckResult reports whether a URL is already saved.
type CheckResult struct {
	Exists  bool   `json:"exists"`
	Summary string `json:"summary,omitempty"`
	PageID  string `json:"page_id,omitempty"`
}

// ChatResult is the outcome of one conversation turn, including any
// system-style confirmation or error turns appended by action dispatch.
type ChatResult struct {
	Reply string     `json:"reply"`
	Turns []llm.Turn `json:"turns"`
}
