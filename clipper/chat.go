package clipper

import (
	"context"
	"fmt"
	"strings"

	"github.com/webclip/clipd/action"
	"github.com/webclip/clipd/capture"
	"github.com/webclip/clipd/clipper/internal/settings"
	"github.com/webclip/clipd/llm"
)

// Converse sends the conversation to the model and handles any action
// its reply requests. Dispatch outcomes, success confirmations and
// failures alike, come back as assistant-visible turns; only a missing
// LLM key or a transport failure to the gateway is returned as an error.
func (s *Service) Converse(ctx context.Context, page *capture.Page, pageID string, turns []llm.Turn) (*ChatResult, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: at least one turn required", ErrInvalidInput)
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap.OpenAIAPIKey == "" {
		return nil, ErrNoOpenAIKey
	}

	// The system turn is synthesized once, from the page snapshot, when
	// the conversation starts without one.
	if page != nil && !hasSystemTurn(turns) {
		turns = append([]llm.Turn{capture.SystemTurn(page)}, turns...)
	}

	reply, err := s.newLLM(snap).Complete(ctx, turns)
	if err != nil {
		return nil, err
	}

	res := action.Parse(reply)
	if res.Act == nil {
		// Plain conversation, or a protocol error already folded into
		// the fallback text with its diagnostic note.
		if res.Note != "" {
			s.logger.Warn("clipper: action parse failed", "note", res.Note)
		}
		turns = append(turns, llm.Turn{Role: llm.RoleAssistant, Content: res.Fallback})
		return &ChatResult{Reply: res.Fallback, Turns: turns}, nil
	}

	var parts []string
	if res.Prefix != "" {
		parts = append(parts, res.Prefix)
	}
	parts = append(parts, s.dispatch(ctx, snap, page, pageID, res.Act))

	display := strings.Join(parts, "\n\n")
	turns = append(turns, llm.Turn{Role: llm.RoleAssistant, Content: display})
	return &ChatResult{Reply: display, Turns: turns}, nil
}

// dispatch executes one validated action against the store. It never
// returns an error; every outcome is a user-visible message.
func (s *Service) dispatch(ctx context.Context, snap settings.Snapshot, page *capture.Page, pageID string, act action.Action) string {
	if pageID == "" {
		return "[System Error] Page is not saved in Notion yet. Save the page first, then try again."
	}
	if !snap.Configured() {
		return "[System Error] Notion credentials are not configured."
	}
	store := s.newStore(snap)

	switch a := act.(type) {
	case action.AppendImages:
		var images []string
		if page != nil {
			images = page.Images
		}
		urls := action.ResolveImageRefs(a.ImageIDs, images)
		if len(urls) == 0 {
			return "[System Error] No valid image IDs found in AI response."
		}
		if _, err := store.AppendImageBlocks(ctx, pageID, urls); err != nil {
			s.logger.Warn("clipper: append images failed", "page_id", pageID, "error", err)
			return "[System Error] Failed to append images: " + err.Error()
		}
		return fmt.Sprintf("[System] Successfully appended %d image(s) to Notion.", len(urls))

	case action.AppendText:
		n, _, err := store.AppendTextBlocks(ctx, pageID, a.Text)
		if err != nil {
			s.logger.Warn("clipper: append text failed", "page_id", pageID, "error", err)
			return "[System Error] Failed to append text: " + err.Error()
		}
		return fmt.Sprintf("[System] Successfully appended %d text block(s) to Notion.", n)
	}

	return "[System Error] Unsupported action."
}

func hasSystemTurn(turns []llm.Turn) bool {
	for _, t := range turns {
		if t.Role == llm.RoleSystem {
			return true
		}
	}
	return false
}
