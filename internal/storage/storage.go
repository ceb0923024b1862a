package storage

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
)

// Object is one fully assembled media file headed for durable storage.
type Object struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Data        []byte
}

// Sink is durable object storage. Put stores the object and returns a
// stable, publicly fetchable URL for it.
// Both the local-disk and S3-compatible backends implement this.
type Sink interface {
	Put(ctx context.Context, obj Object) (url string, err error)
}

// IsTransient reports whether a sink error is worth retrying: timeouts
// and server-side 5xx classes. Permission and capacity failures are
// terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InternalError", "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}
