package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/channel"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/formatter"
	"github.com/postwave/platform/pkg/observability/metrics"
	"github.com/postwave/platform/pkg/poster"
	"github.com/postwave/platform/pkg/publication"
	"github.com/postwave/platform/pkg/socialnet"
)

const abortMessage = "aborted due to system shutdown"

// Notification kinds raised for non-fully-successful dispatches.
const (
	NotifyPublicationFailed  = "publication_failed"
	NotifyPublicationPartial = "publication_partial"
)

// maxRetryDelay caps the exponential backoff between gateway attempts.
const maxRetryDelay = 5 * time.Second

type PublicationStore interface {
	Get(ctx context.Context, id uuid.UUID) (publication.Publication, error)
	Posts(ctx context.Context, publicationID uuid.UUID) ([]publication.Post, error)
	TryAcquire(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID, finalStatus string) error
	MarkPostPublished(ctx context.Context, postID uuid.UUID, externalURL string, publishedAt time.Time) error
	MarkPostFailed(ctx context.Context, postID uuid.UUID, message string) error
}

type ChannelStore interface {
	Get(ctx context.Context, id uuid.UUID) (channel.Channel, error)
}

type ChannelValidator interface {
	Validate(ch channel.Channel) error
}

type Gateway interface {
	Send(ctx context.Context, req poster.PostRequest, deadline time.Duration) (poster.Receipt, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, context map[string]interface{}) error
}

type Config struct {
	// RetryAttempts is the number of additional gateway attempts after the
	// first one, per post. Only retryable failures consume the budget.
	RetryAttempts int
	RetryDelay    time.Duration
	// PostTimeout bounds each individual gateway attempt.
	PostTimeout time.Duration
}

// Engine pushes one publication out to all of its channels. Mutual exclusion
// per publication comes entirely from the conditional-update lock in the
// publication store; the engine itself holds no mutex and instances may run
// concurrently for different publications.
type Engine struct {
	pubs      PublicationStore
	channels  ChannelStore
	validator ChannelValidator
	gateway   Gateway
	notifier  Notifier
	shutdown  *ShutdownCoordinator
	catalog   socialnet.Catalog
	cfg       Config
}

func NewEngine(
	pubs PublicationStore,
	channels ChannelStore,
	validator ChannelValidator,
	gateway Gateway,
	notifier Notifier,
	shutdown *ShutdownCoordinator,
	catalog socialnet.Catalog,
	cfg Config,
) *Engine {
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.PostTimeout <= 0 {
		cfg.PostTimeout = 60 * time.Second
	}
	return &Engine{
		pubs:      pubs,
		channels:  channels,
		validator: validator,
		gateway:   gateway,
		notifier:  notifier,
		shutdown:  shutdown,
		catalog:   catalog,
		cfg:       cfg,
	}
}

// Dispatch runs one delivery attempt for the publication. A false Started in
// the result means another attempt already holds the lock; that is a no-op,
// not an error. The lock is always released before Dispatch returns, even on
// the persist-failure paths.
func (e *Engine) Dispatch(ctx context.Context, id uuid.UUID) (Result, error) {
	acquired, err := e.pubs.TryAcquire(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !acquired {
		metrics.ObserveLockContention()
		logger.Log.WithField("publication_id", id).Info("publication already being dispatched, skipping")
		return Result{Started: false}, nil
	}

	finalStatus := publication.StatusFailed
	released := false
	defer func() {
		if released {
			return
		}
		// Never leave the row in PROCESSING, whatever went wrong above.
		if err := e.pubs.Release(context.Background(), id, finalStatus); err != nil {
			logger.Log.WithError(err).WithField("publication_id", id).Error("failed to release dispatch lock")
		}
	}()

	pub, err := e.pubs.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load publication: %w", err)
	}
	posts, err := e.pubs.Posts(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load posts: %w", err)
	}

	outcomes, err := e.dispatchPosts(ctx, pub, posts)
	if err != nil {
		return Result{}, err
	}

	finalStatus = Finalize(outcomes)
	if err := e.pubs.Release(ctx, id, finalStatus); err != nil {
		released = true // no point retrying the same write in the deferred path
		return Result{}, fmt.Errorf("release dispatch lock: %w", err)
	}
	released = true

	metrics.ObserveDispatch(finalStatus)
	logger.Log.WithFields(map[string]interface{}{
		"publication_id": id,
		"final_status":   finalStatus,
		"posts":          len(outcomes),
	}).Info("publication dispatch finished")

	e.notifyOutcome(ctx, pub, finalStatus, outcomes)

	return Result{Started: true, FinalStatus: finalStatus, Outcomes: outcomes}, nil
}

// dispatchPosts walks the posts in creation order. Per-post failures are
// recorded and never abort the sweep; only a failure to persist an outcome
// propagates, since there is no safe state to record for it.
func (e *Engine) dispatchPosts(ctx context.Context, pub publication.Publication, posts []publication.Post) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(posts))

	for _, post := range posts {
		if e.shutdown.InProgress() {
			if err := e.pubs.MarkPostFailed(ctx, post.ID, abortMessage); err != nil {
				return nil, fmt.Errorf("persist aborted post: %w", err)
			}
			metrics.ObservePostAborted()
			outcomes = append(outcomes, Outcome{
				PostID:    post.ID,
				ChannelID: post.ChannelID,
				Kind:      OutcomeAborted,
				Error:     abortMessage,
			})
			continue
		}

		outcome, err := e.dispatchOne(ctx, pub, post)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (e *Engine) dispatchOne(ctx context.Context, pub publication.Publication, post publication.Post) (Outcome, error) {
	outcome := Outcome{PostID: post.ID, ChannelID: post.ChannelID}

	ch, err := e.channels.Get(ctx, post.ChannelID)
	if err != nil {
		message := "channel not found"
		if !errors.Is(err, channel.ErrNotFound) {
			message = fmt.Sprintf("channel lookup failed: %v", err)
		}
		return e.failPost(ctx, outcome, OutcomeValidationFailed, message)
	}

	if err := e.validator.Validate(ch); err != nil {
		return e.failPost(ctx, outcome, OutcomeValidationFailed, err.Error())
	}

	receipt, err := e.send(ctx, buildPayload(pub, post, ch, e.catalog))
	if err != nil {
		kind := OutcomeGatewayFailed
		if poster.IsTimeout(err) {
			kind = OutcomeTimeout
		}
		return e.failPost(ctx, outcome, kind, err.Error())
	}

	publishedAt := receipt.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now().UTC()
	}
	if err := e.pubs.MarkPostPublished(ctx, post.ID, receipt.URL, publishedAt); err != nil {
		return Outcome{}, fmt.Errorf("persist published post: %w", err)
	}

	metrics.ObservePostPublished()
	outcome.Kind = OutcomePublished
	outcome.Success = true
	outcome.ExternalURL = receipt.URL
	outcome.PublishedAt = &publishedAt
	return outcome, nil
}

// send runs the gateway call under the per-post deadline, retrying retryable
// failures with exponential backoff. The last error wins.
func (e *Engine) send(ctx context.Context, req poster.PostRequest) (poster.Receipt, error) {
	var receipt poster.Receipt
	var err error

	delay := e.cfg.RetryDelay
	for attempt := 0; attempt <= e.cfg.RetryAttempts; attempt++ {
		receipt, err = e.gateway.Send(ctx, req, e.cfg.PostTimeout)
		if err == nil {
			return receipt, nil
		}
		if !poster.IsRetryable(err) {
			return poster.Receipt{}, err
		}
		if attempt == e.cfg.RetryAttempts {
			break
		}

		metrics.ObserveGatewayRetry()
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"platform": req.Platform,
			"attempt":  attempt + 1,
			"delay":    delay.String(),
		}).Warn("gateway call failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return poster.Receipt{}, err
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return poster.Receipt{}, err
}

func (e *Engine) failPost(ctx context.Context, outcome Outcome, kind, message string) (Outcome, error) {
	if err := e.pubs.MarkPostFailed(ctx, outcome.PostID, message); err != nil {
		return Outcome{}, fmt.Errorf("persist failed post: %w", err)
	}
	metrics.ObservePostFailed()
	outcome.Kind = kind
	outcome.Error = message
	return outcome, nil
}

func (e *Engine) notifyOutcome(ctx context.Context, pub publication.Publication, finalStatus string, outcomes []Outcome) {
	if e.notifier == nil || finalStatus == publication.StatusPublished {
		return
	}

	kind := NotifyPublicationPartial
	if finalStatus == publication.StatusFailed {
		kind = NotifyPublicationFailed
	}

	failed := FailedChannels(outcomes)
	channelIDs := make([]string, 0, len(failed))
	for _, id := range failed {
		channelIDs = append(channelIDs, id.String())
	}

	err := e.notifier.Notify(ctx, pub.AuthorID, kind, map[string]interface{}{
		"publication_id":  pub.ID.String(),
		"final_status":    finalStatus,
		"failed_channels": channelIDs,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("publication_id", pub.ID).Error("failed to send dispatch notification")
	}
}

func buildPayload(pub publication.Publication, post publication.Post, ch channel.Channel, catalog socialnet.Catalog) poster.PostRequest {
	network, _ := catalog.Lookup(ch.Kind)

	var media []poster.MediaAttachment
	if network.SupportsMedia {
		for _, ref := range pub.Media {
			media = append(media, poster.MediaAttachment{Kind: ref.Kind, URL: ref.URL})
		}
	}

	return poster.PostRequest{
		Platform:          ch.Kind,
		ChannelIdentifier: ch.Identifier,
		Credentials:       ch.Credentials,
		Content:           formatter.Format(pub.Content, network, post.Overrides.Tags),
		Media:             media,
	}
}
