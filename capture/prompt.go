package capture

import (
	"fmt"
	"strings"

	"github.com/webclip/clipd/llm"
)

// systemPrompt instructs the model on the action protocol. The IMG_<n>
// inventory in the context is the only vocabulary the model may use to
// reference images, which keeps it from inventing arbitrary URLs.
const systemPrompt = `You are a helpful AI assistant inside a Notion web clipper. Answer strictly based on the provided context if relevant.

CRITICAL AI ACTION PROTOCOL:
You cannot click, but you CAN execute special commands by returning a JSON inside an <action> tag.
If the user explicitly asks you to save or add IMAGES to Notion, respond with this exact format:
<action>{"type": "append_images", "image_ids": ["IMG_0", "IMG_1"]}</action>
You can include up to 10 image IDs from the 'Found Images' list context (do not hallucinate IDs).
If the user explicitly asks you to save or add TEXT/details/summaries directly to Notion, respond with this exact format:
<action>{"type": "append_text", "text": "Your formatted text here..."}</action>
Do not use <action> unless the user explicitly asks to "add/save to Notion". When just answering questions, use plain text.`

// SystemTurn synthesizes the conversation's system turn from a page
// snapshot. It is built exactly once, when the first user turn is sent;
// later page changes are not reflected.
func SystemTurn(p *Page) llm.Turn {
	imgRefs := make([]string, 0, len(p.Images))
	for i := range p.Images {
		imgRefs = append(imgRefs, fmt.Sprintf("IMG_%d", i))
	}
	imgContext := strings.Join(imgRefs, ", ")
	if imgContext == "" {
		imgContext = "None"
	}

	selected := p.SelectedText
	if selected == "" {
		selected = "None"
	}

	context := fmt.Sprintf("Context: This is a webpage titled %q at URL: %s.\nDescription: %s\nSelected Text: %s\nFound Images: %s",
		p.Title, p.URL, p.Description, selected, imgContext)

	return llm.Turn{
		Role:    llm.RoleSystem,
		Content: systemPrompt + "\n\n" + context,
	}
}
