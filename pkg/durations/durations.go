package durations

import (
	"time"
)

const (
	// DefaultRequestTTL is the credential lifetime applied when
	// EXPIRE_MINUTES is unset or unparseable.
	DefaultRequestTTL = time.Minute * 60

	// ReaperInterval is the period between two expiry sweeps.
	ReaperInterval = time.Second * 60

	// TokenPopulateBase is the initial backoff while waiting for the
	// token controller to fill in a service account token secret.
	TokenPopulateBase = time.Millisecond * 5

	// TokenPopulateMax caps a single backoff interval of the token wait.
	TokenPopulateMax = time.Second * 60

	// FailureRateLimiterBase and FailureRateLimiterMax bound the
	// exponential backoff of the request workqueue.
	FailureRateLimiterBase = time.Millisecond * 5
	FailureRateLimiterMax  = time.Second * 60

	// RestConfigTimeout bounds one-shot API calls made outside the
	// manager, like the startup configuration discovery.
	RestConfigTimeout = time.Second * 15
)

// TokenPopulateSteps bounds the token wait to 30 attempts; with the 60s cap
// a reconcile gives up on an unpopulated secret after roughly half an hour.
const TokenPopulateSteps = 30
