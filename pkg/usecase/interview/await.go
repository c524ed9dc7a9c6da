package interview

import (
	"context"
	"time"
)

// AwaitResponse waits for the interviewee's next line with a bound.
// A timeout or cancelled context yields ("", false), not an error;
// silence is an expected outcome of an interview, and the caller
// decides whether to re-ask or end the session.
func (s *Session) AwaitResponse(ctx context.Context, responses <-chan string, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-responses:
		if !ok {
			return "", false
		}
		return line, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}
