package dispatch

import (
	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/publication"
)

// Finalize reduces per-post outcomes to the publication's terminal status:
// PUBLISHED when everything succeeded, FAILED when nothing did (the
// all-aborted and zero-post cases included), PARTIAL for a mix.
func Finalize(outcomes []Outcome) string {
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
		}
	}
	switch {
	case len(outcomes) == 0:
		return publication.StatusFailed
	case succeeded == len(outcomes):
		return publication.StatusPublished
	case succeeded == 0:
		return publication.StatusFailed
	default:
		return publication.StatusPartial
	}
}

// FailedChannels lists the channel ids whose posts did not publish, for the
// notification payload.
func FailedChannels(outcomes []Outcome) []uuid.UUID {
	var failed []uuid.UUID
	for _, outcome := range outcomes {
		if !outcome.Success {
			failed = append(failed, outcome.ChannelID)
		}
	}
	return failed
}
