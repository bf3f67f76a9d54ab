package pushtokens

import (
	"context"
	"encoding/json"
	"time"
)

var QueryTimeoutDuration = time.Second * 5

type Store interface {
	Upsert(ctx context.Context, userID int64, token string, deviceInfo json.RawMessage) error
	Remove(ctx context.Context, userID int64, token string) error
	RemoveTokens(ctx context.Context, tokens []string) error
	TokensByUser(ctx context.Context, userID int64) ([]string, error)
	PruneStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
