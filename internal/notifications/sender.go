package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender is an abstraction over the push service, tied to the exponent SDK types.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
}
