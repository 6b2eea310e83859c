package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/postwave/platform/pkg/socialnet"
	"golang.org/x/oauth2"
)

var (
	errNotActive          = errors.New("channel not active")
	errMissingCredentials = errors.New("missing/invalid credentials")
	errUnsupportedKind    = errors.New("unsupported network kind")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// botTokenPattern matches the numeric-id:secret shape bot platforms hand out.
var botTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{20,}$`)

// Validator checks a channel is deliverable before any gateway call is made.
type Validator struct {
	catalog socialnet.Catalog
	now     func() time.Time
}

func NewValidator(catalog socialnet.Catalog) *Validator {
	return &Validator{catalog: catalog, now: time.Now}
}

// Validate runs the pre-dispatch checks in order: the channel is active, its
// network kind is known, and the credentials blob is structurally plausible
// for that kind. Failures come back as ValidationError with a human-readable
// reason; they are never retried.
func (v *Validator) Validate(ch Channel) error {
	if !ch.IsActive {
		return ValidationError{reason: errNotActive}
	}

	network, ok := v.catalog.Lookup(ch.Kind)
	if !ok {
		return ValidationError{reason: fmt.Errorf("network '%s': %w", ch.Kind, errUnsupportedKind)}
	}

	credentials := strings.TrimSpace(ch.Credentials)
	if credentials == "" {
		return ValidationError{reason: errMissingCredentials}
	}

	switch network.CredentialScheme {
	case socialnet.SchemeBotToken:
		if !botTokenPattern.MatchString(credentials) {
			return ValidationError{reason: fmt.Errorf("bot token malformed: %w", errMissingCredentials)}
		}
	case socialnet.SchemeOAuth:
		var token oauth2.Token
		if err := json.Unmarshal([]byte(credentials), &token); err != nil {
			return ValidationError{reason: fmt.Errorf("oauth credentials unreadable: %w", errMissingCredentials)}
		}
		if token.AccessToken == "" {
			return ValidationError{reason: fmt.Errorf("oauth access token empty: %w", errMissingCredentials)}
		}
		if !token.Expiry.IsZero() && token.Expiry.Before(v.now()) && token.RefreshToken == "" {
			return ValidationError{reason: fmt.Errorf("oauth token expired with no refresh token: %w", errMissingCredentials)}
		}
	case socialnet.SchemeWebhook:
		parsed, err := url.Parse(credentials)
		if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			return ValidationError{reason: fmt.Errorf("webhook URL malformed: %w", errMissingCredentials)}
		}
	default:
		return ValidationError{reason: fmt.Errorf("credential scheme '%s': %w", network.CredentialScheme, errUnsupportedKind)}
	}

	return nil
}
