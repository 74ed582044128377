package kafka

import (
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"
)

// IsRetryableError reports whether a write failure is worth another attempt.
// Broker error codes are authoritative; otherwise transport failures are
// recognized by message.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"dial tcp",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
