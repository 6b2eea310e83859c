package formatter

import (
	"strings"

	"github.com/postwave/platform/pkg/socialnet"
)

// Format renders the outbound body for one channel: the publication content,
// followed by the channel's tags in the network's tag style, truncated to the
// network's body limit. Pure function, no I/O.
func Format(content string, network socialnet.Network, tags []string) string {
	body := strings.TrimSpace(content)

	if line := tagLine(network.TagPrefix, tags); line != "" {
		if body != "" {
			body += "\n\n"
		}
		body += line
	}

	return truncate(body, network.MaxBodyLength)
}

func tagLine(prefix string, tags []string) string {
	if prefix == "" {
		prefix = "#"
	}
	seen := make(map[string]struct{}, len(tags))
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.ReplaceAll(strings.TrimSpace(strings.TrimPrefix(tag, prefix)), " ", "_")
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		parts = append(parts, prefix+cleaned)
	}
	return strings.Join(parts, " ")
}

func truncate(body string, limit int) string {
	if limit <= 0 {
		return body
	}
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
