package engagement

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("engagement not found")
	ErrPostNotPublished = errors.New("post has not been published")
	ErrFetchFailed    = errors.New("failed to fetch engagement metrics")
)

// RateLimitedError is returned by Refresh when the Twitter fetch itself
// came back rate-limited; ResetAt echoes the reported reset instant so
// the HTTP layer can surface 429 with Retry-After rather than collapsing
// it into the generic ErrFetchFailed.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("engagement: rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// resetCarrier is satisfied by any fetcher error that reports a reset
// instant — twitter.RateLimitedError included — without this package
// importing the twitter package directly.
type resetCarrier interface {
	Reset() time.Time
}

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "ENGAGEMENT_NOT_FOUND"
	CodeNotPublished    ErrorCode = "ENGAGEMENT_POST_NOT_PUBLISHED"
	CodeFetchFailed     ErrorCode = "ENGAGEMENT_FETCH_FAILED"
	CodeRateLimited     ErrorCode = "ENGAGEMENT_RATE_LIMITED"
	CodeInternal        ErrorCode = "ENGAGEMENT_INTERNAL"
)

var errorMapping = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrPostNotPublished: CodeNotPublished,
	ErrFetchFailed:      CodeFetchFailed,
}

func GetErrorCode(err error) ErrorCode {
	var rl RateLimitedError
	if errors.As(err, &rl) {
		return CodeRateLimited
	}
	for sentinel, code := range errorMapping {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrPostNotPublished) }

func IsRateLimited(err error) (RateLimitedError, bool) {
	var rl RateLimitedError
	ok := errors.As(err, &rl)
	return rl, ok
}
