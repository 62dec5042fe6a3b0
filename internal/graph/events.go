package graph

import (
	"context"
	"log/slog"

	"lireddit/server/internal/metrics"
)

// Post event subjects.
const (
	SubjectPostCreated = "post.created"
	SubjectPostUpdated = "post.updated"
	SubjectPostDeleted = "post.deleted"
	SubjectPostVoted   = "post.voted"
)

// Publisher delivers domain events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// PostEvent is the payload of every post.* event.
type PostEvent struct {
	PostID int `json:"postId"`
	UserID int `json:"userId"`
	Value  int `json:"value,omitempty"`
	Points int `json:"points,omitempty"`
}

// publish never fails the caller; mutations succeed even if the broker is
// down.
func publish(ctx context.Context, pub Publisher, logger *slog.Logger, subject string, ev PostEvent) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, ev); err != nil {
		metrics.EventPublishFailures.WithLabelValues(subject).Inc()
		logger.WarnContext(ctx, "publishing event failed", "subject", subject, "post_id", ev.PostID, "error", err)
	}
}
