package formatter

import (
	"strings"
	"testing"

	"github.com/postwave/platform/pkg/socialnet"
)

func telegram() socialnet.Network {
	network, _ := socialnet.DefaultCatalog().Lookup("telegram")
	return network
}

func TestFormatAppendsTags(t *testing.T) {
	body := Format("New release is out", telegram(), []string{"release", "go lang"})
	if !strings.HasPrefix(body, "New release is out") {
		t.Fatalf("unexpected body: %q", body)
	}
	if !strings.Contains(body, "#release") {
		t.Fatalf("expected #release, got %q", body)
	}
	if !strings.Contains(body, "#go_lang") {
		t.Fatalf("expected spaces replaced in tags, got %q", body)
	}
}

func TestFormatDeduplicatesTags(t *testing.T) {
	body := Format("x", telegram(), []string{"Release", "release", "#release"})
	if strings.Count(body, "#") != 1 {
		t.Fatalf("expected a single tag, got %q", body)
	}
}

func TestFormatTruncatesToNetworkLimit(t *testing.T) {
	network := socialnet.Network{MaxBodyLength: 10, TagPrefix: "#"}
	body := Format(strings.Repeat("a", 50), network, nil)
	if len([]rune(body)) != 10 {
		t.Fatalf("expected 10 runes, got %d (%q)", len([]rune(body)), body)
	}
	if !strings.HasSuffix(body, "…") {
		t.Fatalf("expected ellipsis, got %q", body)
	}
}

func TestFormatNoTags(t *testing.T) {
	body := Format("  plain body  ", telegram(), nil)
	if body != "plain body" {
		t.Fatalf("expected trimmed body, got %q", body)
	}
}
