package markdown

import "strings"

// Block is a region of a note owned by the tool, delimited by HTML comments
// so user text around it survives regeneration.
type Block struct {
	Start string
	End   string
}

// Replace swaps the block's content in body, appending the block when the
// markers are absent or out of order.
func (b Block) Replace(body, generated string) string {
	start := strings.Index(body, b.Start)
	end := strings.Index(body, b.End)
	block := b.Start + "\n" + generated + "\n" + b.End

	if start >= 0 && end > start {
		return body[:start] + block + body[end+len(b.End):]
	}
	if strings.TrimSpace(body) == "" {
		return block + "\n"
	}
	if strings.HasSuffix(body, "\n") {
		return body + "\n" + block + "\n"
	}
	return body + "\n\n" + block + "\n"
}
