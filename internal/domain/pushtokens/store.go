package pushtokens

import (
	"context"
	"encoding/json"
	"time"

	"trekmap/internal/infra/dbx"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

// Upsert stores the device token and refreshes last_updated.
func (r *Repository) Upsert(ctx context.Context, userID int64, token string, deviceInfo json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `
        INSERT INTO user_push_tokens (user_id, expo_push_token, device_info, last_updated)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (user_id, expo_push_token)
        DO UPDATE SET device_info = EXCLUDED.device_info, last_updated = now()
    `, userID, token, deviceInfo)
	return err
}

func (r *Repository) Remove(ctx context.Context, userID int64, token string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM user_push_tokens WHERE user_id = $1 AND expo_push_token = $2`, userID, token)
	return err
}

// RemoveTokens drops tokens the push service reported as unregistered.
func (r *Repository) RemoveTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM user_push_tokens WHERE expo_push_token = ANY($1)`, tokens)
	return err
}

func (r *Repository) TokensByUser(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, `
        SELECT DISTINCT expo_push_token FROM user_push_tokens WHERE user_id = $1
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *Repository) PruneStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
        DELETE FROM user_push_tokens WHERE last_updated < now() - make_interval(secs => $1)
    `, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
