package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	dispatchPublished  atomic.Int64
	dispatchPartial    atomic.Int64
	dispatchFailed     atomic.Int64
	dispatchSkipped    atomic.Int64
	postsPublished     atomic.Int64
	postsFailed        atomic.Int64
	postsAborted       atomic.Int64
	gatewayRetries     atomic.Int64
	channelTestsServed atomic.Int64
)

func ObserveDispatch(finalStatus string) {
	switch finalStatus {
	case "PUBLISHED":
		dispatchPublished.Add(1)
	case "PARTIAL":
		dispatchPartial.Add(1)
	case "FAILED":
		dispatchFailed.Add(1)
	}
}

// ObserveLockContention counts dispatch triggers that found the publication
// already locked.
func ObserveLockContention() {
	dispatchSkipped.Add(1)
}

func ObservePostPublished() { postsPublished.Add(1) }
func ObservePostFailed()    { postsFailed.Add(1) }
func ObservePostAborted()   { postsAborted.Add(1) }
func ObserveGatewayRetry()  { gatewayRetries.Add(1) }
func ObserveChannelTest()   { channelTestsServed.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP postwave_dispatch_published_total Publications fully published.\n")
	fmt.Fprintf(w, "# TYPE postwave_dispatch_published_total counter\n")
	fmt.Fprintf(w, "postwave_dispatch_published_total %d\n", dispatchPublished.Load())

	fmt.Fprintf(w, "# HELP postwave_dispatch_partial_total Publications with mixed per-channel outcomes.\n")
	fmt.Fprintf(w, "# TYPE postwave_dispatch_partial_total counter\n")
	fmt.Fprintf(w, "postwave_dispatch_partial_total %d\n", dispatchPartial.Load())

	fmt.Fprintf(w, "# HELP postwave_dispatch_failed_total Publications where every post failed.\n")
	fmt.Fprintf(w, "# TYPE postwave_dispatch_failed_total counter\n")
	fmt.Fprintf(w, "postwave_dispatch_failed_total %d\n", dispatchFailed.Load())

	fmt.Fprintf(w, "# HELP postwave_dispatch_skipped_total Dispatch triggers skipped because the publication was already locked.\n")
	fmt.Fprintf(w, "# TYPE postwave_dispatch_skipped_total counter\n")
	fmt.Fprintf(w, "postwave_dispatch_skipped_total %d\n", dispatchSkipped.Load())

	fmt.Fprintf(w, "# HELP postwave_posts_published_total Posts delivered to the gateway.\n")
	fmt.Fprintf(w, "# TYPE postwave_posts_published_total counter\n")
	fmt.Fprintf(w, "postwave_posts_published_total %d\n", postsPublished.Load())

	fmt.Fprintf(w, "# HELP postwave_posts_failed_total Posts that ended in failure.\n")
	fmt.Fprintf(w, "# TYPE postwave_posts_failed_total counter\n")
	fmt.Fprintf(w, "postwave_posts_failed_total %d\n", postsFailed.Load())

	fmt.Fprintf(w, "# HELP postwave_posts_aborted_total Posts skipped because shutdown was in progress.\n")
	fmt.Fprintf(w, "# TYPE postwave_posts_aborted_total counter\n")
	fmt.Fprintf(w, "postwave_posts_aborted_total %d\n", postsAborted.Load())

	fmt.Fprintf(w, "# HELP postwave_gateway_retries_total Retried gateway calls across all posts.\n")
	fmt.Fprintf(w, "# TYPE postwave_gateway_retries_total counter\n")
	fmt.Fprintf(w, "postwave_gateway_retries_total %d\n", gatewayRetries.Load())

	fmt.Fprintf(w, "# HELP postwave_channel_tests_total Channel test operations served.\n")
	fmt.Fprintf(w, "# TYPE postwave_channel_tests_total counter\n")
	fmt.Fprintf(w, "postwave_channel_tests_total %d\n", channelTestsServed.Load())
}
