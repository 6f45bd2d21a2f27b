package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"razdel/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrProfileNotFound = errors.New("profile not found")

	// ErrEmptyContent rejects blank comment bodies before they reach storage.
	ErrEmptyContent = errors.New("comment content is empty")
)

// Gateway is the backend adapter the sync core talks to. Implementations do
// not retry; every failure surfaces to the caller.
type Gateway interface {
	// ListUserMessages returns the caller's own messages, newest first.
	ListUserMessages(ctx context.Context, userID string) ([]models.Message, error)
	// ListPublicMessages returns public messages joined with author profiles,
	// newest first. Excluding the caller's own messages is the caller's job.
	ListPublicMessages(ctx context.Context) ([]models.Message, error)

	// ListComments returns a message's comments in ascending creation order,
	// each joined with the author's profile.
	ListComments(ctx context.Context, messageID string) ([]models.Comment, error)
	// CreateComment stores a comment. Fails with ErrEmptyContent when the
	// trimmed content is blank. The returned comment carries no profile join.
	CreateComment(ctx context.Context, messageID, userID, content string) (models.Comment, error)
	// UpdateComment replaces a comment's content. Fails with
	// ErrCommentNotFound when the comment no longer exists.
	UpdateComment(ctx context.Context, commentID, content string) error
	DeleteComment(ctx context.Context, commentID string) error

	DeleteMessage(ctx context.Context, messageID string) error
	// DeleteMessages deletes each id independently and returns the ids that
	// were confirmed deleted. When some deletions fail the returned error is a
	// *PartialDeleteError describing the rest.
	DeleteMessages(ctx context.Context, ids []string) ([]string, error)

	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// PartialDeleteError reports a bulk delete where some ids failed.
type PartialDeleteError struct {
	Failed map[string]error
}

func (e *PartialDeleteError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("failed to delete %d message(s): %s", len(ids), strings.Join(ids, ", "))
}

// deleteEach runs per-id deletes, collecting confirmed ids and failures.
// Shared by both gateway implementations.
func deleteEach(ctx context.Context, ids []string, del func(context.Context, string) error) ([]string, error) {
	deleted := make([]string, 0, len(ids))
	failed := map[string]error{}
	for _, id := range ids {
		if err := del(ctx, id); err != nil {
			failed[id] = err
			continue
		}
		deleted = append(deleted, id)
	}
	if len(failed) > 0 {
		return deleted, &PartialDeleteError{Failed: failed}
	}
	return deleted, nil
}
