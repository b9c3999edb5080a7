package notify

import (
	"errors"
	"fmt"
)

var ErrNoChannels = errors.New("no notification channels configured")

// SendError is a failed delivery to one channel.
type SendError struct {
	Channel string
	Status  int    // HTTP status when the sink answered, 0 otherwise
	Body    string // truncated response body, if any
	Err     error
}

func (e *SendError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("notify %s: status %d: %s", e.Channel, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("notify %s: status %d", e.Channel, e.Status)
	default:
		return fmt.Sprintf("notify %s: %v", e.Channel, e.Err)
	}
}

func (e *SendError) Unwrap() error { return e.Err }
