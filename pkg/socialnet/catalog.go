package socialnet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credential schemes a network kind may declare.
const (
	SchemeBotToken = "bot_token" // opaque token, e.g. "123456:ABC-..."
	SchemeOAuth    = "oauth"     // JSON-serialized oauth2 token
	SchemeWebhook  = "webhook"   // plain https endpoint URL
)

// Network describes one supported social network kind.
type Network struct {
	Display          string `yaml:"display" json:"display"`
	CredentialScheme string `yaml:"credential_scheme" json:"credentialScheme"`
	MaxBodyLength    int    `yaml:"max_body_length" json:"maxBodyLength"`
	TagPrefix        string `yaml:"tag_prefix" json:"tagPrefix"`
	SupportsMedia    bool   `yaml:"supports_media" json:"supportsMedia"`
}

type Catalog struct {
	Networks map[string]Network `yaml:"networks" json:"networks"`
}

// Load reads a catalog from a YAML file, falling back to the built-in
// catalog when no path is configured.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Networks) == 0 {
		return Catalog{}, fmt.Errorf("network catalog empty")
	}
	return cat, nil
}

func (c Catalog) Lookup(kind string) (Network, bool) {
	if c.Networks == nil {
		return Network{}, false
	}
	network, ok := c.Networks[strings.ToLower(kind)]
	if ok {
		return network, true
	}
	for k, v := range c.Networks {
		if strings.EqualFold(k, kind) {
			return v, true
		}
	}
	return Network{}, false
}

func DefaultCatalog() Catalog {
	return Catalog{Networks: map[string]Network{
		"telegram": {
			Display:          "Telegram",
			CredentialScheme: SchemeBotToken,
			MaxBodyLength:    4096,
			TagPrefix:        "#",
			SupportsMedia:    true,
		},
		"vkontakte": {
			Display:          "VKontakte",
			CredentialScheme: SchemeOAuth,
			MaxBodyLength:    16000,
			TagPrefix:        "#",
			SupportsMedia:    true,
		},
		"linkedin": {
			Display:          "LinkedIn",
			CredentialScheme: SchemeOAuth,
			MaxBodyLength:    3000,
			TagPrefix:        "#",
			SupportsMedia:    true,
		},
		"mattermost": {
			Display:          "Mattermost",
			CredentialScheme: SchemeWebhook,
			MaxBodyLength:    16383,
			TagPrefix:        "#",
			SupportsMedia:    false,
		},
	}}
}
