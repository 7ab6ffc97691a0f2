package llama

import (
	"strings"

	"clinicd/internal/manager"
)

const (
	beginOfText = "<|begin_of_text|>"
	eotID       = "<|eot_id|>"
)

// RenderLlama3 renders chat messages with the Llama 3 instruct template and
// leaves the assistant header open for generation.
func RenderLlama3(msgs []manager.Message) string {
	var b strings.Builder
	b.WriteString(beginOfText)
	for _, m := range msgs {
		writeHeader(&b, m.Role)
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString(eotID)
	}
	writeHeader(&b, manager.RoleAssistant)
	return b.String()
}

func writeHeader(b *strings.Builder, role string) {
	b.WriteString("<|start_header_id|>")
	b.WriteString(role)
	b.WriteString("<|end_header_id|>\n\n")
}

func summarizePrompt(text string) string { return "summarize: " + text }
