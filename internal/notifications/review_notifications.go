package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/9ssi7/exponent"
)

var ErrNoPushTokens = errors.New("no push tokens")

type TokenSource interface {
	TokensByUser(ctx context.Context, userID int64) ([]string, error)
}

// ReviewApproved is the payload of the approval push.
type ReviewApproved struct {
	UserID    int64
	ReviewID  int64
	PlaceID   int64
	PlaceName string
	Points    int
}

type ReviewNotifier struct {
	push   PushSender
	tokens TokenSource
}

func NewReviewNotifier(push PushSender, tokens TokenSource) *ReviewNotifier {
	return &ReviewNotifier{push: push, tokens: tokens}
}

// NotifyReviewApproved tells the review owner their review went live and how
// many points it earned.
func (n *ReviewNotifier) NotifyReviewApproved(ctx context.Context, ev ReviewApproved) error {
	tokens, err := n.tokens.TokensByUser(ctx, ev.UserID)
	if err != nil {
		return err
	}
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return ErrNoPushTokens
	}

	title := "Review approved"
	body := fmt.Sprintf("Your review of %s is live. You earned %d points!", ev.PlaceName, ev.Points)
	if ev.Points == 0 {
		body = fmt.Sprintf("Your review of %s is live.", ev.PlaceName)
	}

	msgs := make([]*exponent.Message, 0, len(tokens))
	for _, t := range tokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":      "review_approved",
				"review_id": strconv.FormatInt(ev.ReviewID, 10),
				"place_id":  strconv.FormatInt(ev.PlaceID, 10),
				"screen":    fmt.Sprintf("places/%d", ev.PlaceID),
			},
		})
	}

	_, err = n.push.Publish(ctx, msgs)
	return err
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
