package notion

// PageData carries the clipper-managed properties of a page. Optional
// fields left empty are omitted from the mutation payload entirely.
type PageData struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SessionID   string   `json:"session_id,omitempty"`
	Highlights  string   `json:"highlights,omitempty"`
}

// buildProperties maps PageData onto the database's property schema.
// The mapping is fixed: Title falls back to the URL when empty, Link is
// the URL verbatim, and Status is always reset to "New".
func buildProperties(data PageData) map[string]any {
	title := data.Title
	if title == "" {
		title = data.URL
	}

	props := map[string]any{
		"Title": map[string]any{
			"title": []any{
				map[string]any{"text": map[string]any{"content": title}},
			},
		},
		"Link":   map[string]any{"url": data.URL},
		"Status": map[string]any{"status": map[string]any{"name": "New"}},
	}

	if data.Description != "" {
		props["Description"] = richText(data.Description)
	}
	if len(data.Tags) > 0 {
		sel := make([]any, 0, len(data.Tags))
		for _, t := range data.Tags {
			sel = append(sel, map[string]any{"name": t})
		}
		props["Tags"] = map[string]any{"multi_select": sel}
	}
	if data.SessionID != "" {
		props["Session ID"] = richText(data.SessionID)
	}
	if data.Highlights != "" {
		props["Highlights"] = richText(data.Highlights)
	}
	return props
}

func richText(content string) map[string]any {
	return map[string]any{
		"rich_text": []any{
			map[string]any{"text": map[string]any{"content": content}},
		},
	}
}
