package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---\n"

// Note is a Markdown file with an optional YAML frontmatter header.
type Note struct {
	Meta map[string]any
	Body string
}

// ParseNote splits content into frontmatter and body. Content without a
// leading fence yields empty metadata and the whole content as body. The
// blank line Render inserts after the closing fence is dropped.
func ParseNote(content string) (Note, error) {
	if !strings.HasPrefix(content, fence) {
		return Note{Meta: map[string]any{}, Body: content}, nil
	}
	rest := strings.TrimPrefix(content, fence)
	idx := strings.Index(rest, "\n"+fence)
	if idx < 0 {
		return Note{}, fmt.Errorf("invalid frontmatter: missing closing fence")
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return Note{}, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	body := strings.TrimPrefix(rest[idx+len("\n"+fence):], "\n")
	return Note{Meta: meta, Body: body}, nil
}

// Render writes the note back with keys in the order given by keyOrder;
// keys not listed follow in yaml's default (sorted) order.
func (n Note) Render(keyOrder ...string) (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	seen := map[string]bool{}
	add := func(key string, value any) error {
		var v yaml.Node
		if err := v.Encode(value); err != nil {
			return fmt.Errorf("encode frontmatter %s: %w", key, err)
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &v)
		seen[key] = true
		return nil
	}
	for _, key := range keyOrder {
		if value, ok := n.Meta[key]; ok {
			if err := add(key, value); err != nil {
				return "", err
			}
		}
	}
	rest := map[string]any{}
	for key, value := range n.Meta {
		if !seen[key] {
			rest[key] = value
		}
	}
	if len(rest) > 0 {
		var tail yaml.Node
		if err := tail.Encode(rest); err != nil {
			return "", fmt.Errorf("encode frontmatter: %w", err)
		}
		root.Content = append(root.Content, tail.Content...)
	}

	raw, err := yaml.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	buf := bytes.Buffer{}
	buf.WriteString(fence)
	buf.Write(raw)
	buf.WriteString(fence)
	if !strings.HasPrefix(n.Body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(n.Body)
	return buf.String(), nil
}
