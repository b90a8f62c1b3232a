package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/logging"
)

// ErrReleaseExists indicates the tag already has a release on GitHub.
var ErrReleaseExists = errors.New("release already exists")

// RetryPolicy bounds how often a GitHub call is repeated.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// Backoff is the first wait after a server error. It doubles on every
	// retry up to MaxBackoff.
	Backoff time.Duration

	// MaxBackoff also caps waits for a rate limit reset, so a release run
	// never sleeps for most of an hour.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy retries three times, starting at one second.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

func (p *RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p == nil {
		return *def
	}
	out := *p
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.Backoff <= 0 {
		out.Backoff = def.Backoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	return out
}

type verdict int

const (
	giveUp verdict = iota
	backOff
	waitForReset
)

func (v verdict) String() string {
	switch v {
	case backOff:
		return "transient"
	case waitForReset:
		return "rate limited"
	default:
		return "terminal"
	}
}

// classify decides whether a failed call is worth repeating. For rate
// limits it also returns how long GitHub asked us to wait.
func classify(err error, resp *github.Response) (verdict, time.Duration) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return giveUp, 0
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time) + time.Second
		if wait < time.Second {
			wait = time.Second
		}
		return waitForReset, wait
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return waitForReset, *abuseErr.RetryAfter
		}
		return waitForReset, time.Minute
	}

	status := statusCode(resp)
	if status == 0 {
		// the asset could not be read: another attempt reads the same file
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return giveUp, 0
		}
		// connection reset, DNS, TLS handshake timeouts
		return backOff, 0
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return backOff, 0
	}
	return giveUp, 0
}

// alreadyExists reports a 422 whose validation errors say the release's
// tag is taken.
func alreadyExists(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, e := range ghErr.Errors {
		if e.Code == "already_exists" {
			return true
		}
	}
	return false
}

// withRetry runs call until it succeeds, fails terminally or the policy is
// used up. name labels the call in logs and errors.
func withRetry(ctx context.Context, policy *RetryPolicy, log *logging.Logger, name string, call func() (*github.Response, error)) error {
	p := policy.withDefaults()
	if log == nil {
		log = logging.Nop()
	}

	backoff := p.Backoff
	for attempt := 1; ; attempt++ {
		resp, err := call()
		if err == nil {
			if attempt > 1 {
				log.Info(ctx, "github call recovered", zap.String("call", name), zap.Int("attempts", attempt))
			}
			return nil
		}

		v, wait := classify(err, resp)
		if v == giveUp {
			log.Debug(ctx, "github call failed", zap.String("call", name), zap.Int("status", statusCode(resp)), zap.Error(err))
			return err
		}
		if attempt > p.MaxRetries {
			log.Warn(ctx, "github call failed after retries",
				zap.String("call", name),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
		}

		if v == backOff {
			wait = backoff
			backoff = min(2*backoff, p.MaxBackoff)
		}
		wait = min(wait, p.MaxBackoff)
		log.Info(ctx, "retrying github call",
			zap.String("call", name),
			zap.Stringer("reason", v),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}
}

func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}
