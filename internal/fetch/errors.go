package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for the fetch failure taxonomy. Callers classify with
// errors.Is/errors.As; channel errors are wrapped, never replaced.
var (
	// ErrTimeout marks a channel attempt that ran out of time.
	ErrTimeout = errors.New("fetch timed out")
	// ErrContentInvalid marks an empty or suspiciously short payload.
	ErrContentInvalid = errors.New("fetch content invalid")
	// ErrAllChannelsExhausted means every configured channel failed.
	ErrAllChannelsExhausted = errors.New("all fetch channels exhausted")
)

// HTTPError reports a non-2xx response from a channel.
type HTTPError struct {
	StatusCode int
	Channel    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("channel %s: unexpected status %d", e.Channel, e.StatusCode)
}

// classifyErr maps transport-level timeout errors onto ErrTimeout so the
// taxonomy stays uniform across channels. Other errors pass through.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
