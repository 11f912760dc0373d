// CLAUDE:SUMMARY Parses the <action> protocol embedded in model replies into typed actions or a plain-text fallback.
// Package action extracts structured actions from a language model's
// free-text reply.
//
// The wire convention is a single region delimited by <action> and
// </action> containing a JSON object with a "type" discriminator. Text
// outside the region is ordinary conversation. A missing closing marker
// is tolerated (truncated generations are common); anything that fails
// to parse or validate degrades to a plain-text fallback carrying a
// diagnostic note, never an error — a bad action must not eat the reply.
package action

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	openMarker  = "<action>"
	closeMarker = "</action>"
)

// Action is a validated request extracted from a reply.
// The concrete types are AppendImages and AppendText.
type Action interface {
	isAction()
}

// AppendImages asks for page images, referenced symbolically by
// IMG_<index> tokens, to be appended to the synced record.
type AppendImages struct {
	ImageIDs []string
}

// AppendText asks for free text to be appended to the synced record.
type AppendText struct {
	Text string
}

func (AppendImages) isAction() {}
func (AppendText) isAction()   {}

// Result is the outcome of parsing one reply.
//
// When Act is non-nil, Prefix holds the conversational text outside the
// action region. When Act is nil, Fallback holds the text to display
// instead, and Note carries the diagnostic when the region was present
// but malformed.
type Result struct {
	Prefix   string
	Act      Action
	Fallback string
	Note     string
}

type payload struct {
	Type     string   `json:"type"`
	ImageIDs []string `json:"image_ids"`
	Text     string   `json:"text"`
}

// Parse extracts at most one action from reply.
func Parse(reply string) Result {
	start := strings.Index(reply, openMarker)
	if start < 0 {
		return Result{Fallback: reply}
	}

	rest := reply[start+len(openMarker):]
	content := rest
	after := ""
	if end := strings.Index(rest, closeMarker); end >= 0 {
		content = rest[:end]
		after = rest[end+len(closeMarker):]
	}
	prefix := strings.TrimSpace(reply[:start] + after)

	content = stripFence(strings.TrimSpace(content))

	var p payload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return protocolError(prefix, fmt.Sprintf("failed to parse action (model truncated?): %v. Raw: %s", err, excerpt(content)))
	}

	switch p.Type {
	case "append_images":
		if len(p.ImageIDs) == 0 {
			return protocolError(prefix, fmt.Sprintf("append_images action carried no image_ids. Raw: %s", excerpt(content)))
		}
		return Result{Prefix: prefix, Act: AppendImages{ImageIDs: p.ImageIDs}}
	case "append_text":
		if strings.TrimSpace(p.Text) == "" {
			return protocolError(prefix, fmt.Sprintf("append_text action carried no text. Raw: %s", excerpt(content)))
		}
		return Result{Prefix: prefix, Act: AppendText{Text: p.Text}}
	default:
		return protocolError(prefix, fmt.Sprintf("unsupported action type %q. Raw: %s", p.Type, excerpt(content)))
	}
}

// protocolError builds the fallback display: the conversational prefix,
// if any, followed by a system-style diagnostic.
func protocolError(prefix, note string) Result {
	display := "[System Error] " + note
	if prefix != "" {
		display = prefix + "\n\n" + display
	}
	return Result{Prefix: prefix, Fallback: display, Note: note}
}

// stripFence removes an optional surrounding markdown code fence.
func stripFence(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(lower, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// excerpt truncates s for inclusion in a diagnostic.
func excerpt(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var imageRef = regexp.MustCompile(`^IMG_(\d+)$`)

// ResolveImageRefs maps IMG_<index> tokens onto the captured image list
// by positional index. Malformed or out-of-range references are silently
// dropped; the caller decides what an empty result means.
func ResolveImageRefs(ids, images []string) []string {
	var urls []string
	for _, id := range ids {
		m := imageRef.FindStringSubmatch(strings.TrimSpace(id))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 || n >= len(images) {
			continue
		}
		urls = append(urls, images[n])
	}
	return urls
}
