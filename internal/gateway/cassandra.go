package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"razdel/internal/models"
)

// CassandraGateway is the wide-column backend adapter. Comments live in a
// table clustered by (created_at, id) under the message partition, with a
// small index table for id-only lookups; comment counters use a Cassandra
// counter table merged onto messages at read time.
type CassandraGateway struct {
	session *gocql.Session
}

// NewCassandraGateway constructs a CassandraGateway.
func NewCassandraGateway(session *gocql.Session) *CassandraGateway {
	return &CassandraGateway{session: session}
}

// ListUserMessages returns the caller's own messages, newest first.
func (g *CassandraGateway) ListUserMessages(ctx context.Context, userID string) ([]models.Message, error) {
	query := `SELECT id, title, content, content_type, audio_url, emotion_category,
			is_public, is_anonymous, listener_type, ai_response, human_response,
			likes_count, created_at, user_id
		FROM messages WHERE user_id = ? ALLOW FILTERING`
	msgs, err := g.scanMessages(ctx, g.session.Query(query, userID).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	return g.finishMessages(ctx, msgs, false)
}

// ListPublicMessages returns public messages with author profiles, newest first.
func (g *CassandraGateway) ListPublicMessages(ctx context.Context) ([]models.Message, error) {
	query := `SELECT id, title, content, content_type, audio_url, emotion_category,
			is_public, is_anonymous, listener_type, ai_response, human_response,
			likes_count, created_at, user_id
		FROM messages WHERE is_public = true ALLOW FILTERING`
	msgs, err := g.scanMessages(ctx, g.session.Query(query).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	return g.finishMessages(ctx, msgs, true)
}

func (g *CassandraGateway) scanMessages(ctx context.Context, iter *gocql.Iter) ([]models.Message, error) {
	defer iter.Close()

	var msgs []models.Message
	for {
		var (
			m                                  models.Message
			title, audioURL, aiResp, humanResp string
			contentType, listenerType          string
		)
		if !iter.Scan(&m.ID, &title, &m.Content, &contentType, &audioURL, &m.EmotionCategory,
			&m.IsPublic, &m.IsAnonymous, &listenerType, &aiResp, &humanResp,
			&m.LikesCount, &m.CreatedAt, &m.UserID) {
			break
		}
		m.ContentType = models.ContentType(contentType)
		m.ListenerType = models.ListenerType(listenerType)
		m.Title = optional(title)
		m.AudioURL = optional(audioURL)
		m.AIResponse = optional(aiResp)
		m.HumanResponse = optional(humanResp)
		msgs = append(msgs, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return msgs, nil
}

// finishMessages merges comment counters, optionally fans in author profiles,
// and sorts newest first (no cross-partition ordering in Cassandra).
func (g *CassandraGateway) finishMessages(ctx context.Context, msgs []models.Message, withProfiles bool) ([]models.Message, error) {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	counts, err := g.commentCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	var profiles map[string]models.Profile
	if withProfiles {
		userIDs := make([]string, 0, len(msgs))
		seen := map[string]struct{}{}
		for _, m := range msgs {
			if _, ok := seen[m.UserID]; !ok {
				seen[m.UserID] = struct{}{}
				userIDs = append(userIDs, m.UserID)
			}
		}
		if profiles, err = g.profilesByID(ctx, userIDs); err != nil {
			return nil, err
		}
	}

	for i := range msgs {
		msgs[i].CommentsCount = counts[msgs[i].ID]
		if withProfiles {
			if p, ok := profiles[msgs[i].UserID]; ok {
				author := p
				msgs[i].Author = &author
			}
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs, nil
}

func (g *CassandraGateway) commentCounts(ctx context.Context, messageIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(messageIDs))
	if len(messageIDs) == 0 {
		return counts, nil
	}

	iter := g.session.Query(
		`SELECT message_id, comments_count FROM message_counters WHERE message_id IN ?`,
		messageIDs).WithContext(ctx).Iter()
	var id string
	var count int64
	for iter.Scan(&id, &count) {
		if count < 0 {
			count = 0
		}
		counts[id] = int(count)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("fetch comment counters: %w", err)
	}
	return counts, nil
}

func (g *CassandraGateway) profilesByID(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	profiles := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	iter := g.session.Query(
		`SELECT id, full_name, username, email FROM profiles WHERE id IN ?`, ids).
		WithContext(ctx).Iter()
	for {
		var id, fullName, username, email string
		if !iter.Scan(&id, &fullName, &username, &email) {
			break
		}
		profiles[id] = models.Profile{ID: id, FullName: optional(fullName), Username: optional(username), Email: email}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	return profiles, nil
}

// ListComments returns a message's comments in ascending creation order.
func (g *CassandraGateway) ListComments(ctx context.Context, messageID string) ([]models.Comment, error) {
	iter := g.session.Query(
		`SELECT id, message_id, user_id, content, is_anonymous, created_at
		 FROM comments WHERE message_id = ? ORDER BY created_at ASC`, messageID).
		WithContext(ctx).Iter()

	var comments []models.Comment
	userIDs := []string{}
	seen := map[string]struct{}{}
	for {
		var c models.Comment
		if !iter.Scan(&c.ID, &c.MessageID, &c.UserID, &c.Content, &c.IsAnonymous, &c.CreatedAt) {
			break
		}
		if _, ok := seen[c.UserID]; !ok {
			seen[c.UserID] = struct{}{}
			userIDs = append(userIDs, c.UserID)
		}
		comments = append(comments, c)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}

	profiles, err := g.profilesByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if p, ok := profiles[comments[i].UserID]; ok {
			author := p
			comments[i].Author = &author
		}
	}
	return comments, nil
}

// CreateComment stores a comment, its id-index row, and bumps the counter.
func (g *CassandraGateway) CreateComment(ctx context.Context, messageID, userID, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyContent
	}

	c := models.Comment{
		ID:        uuid.NewString(),
		MessageID: messageID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := g.session.Query(
		`INSERT INTO comments (message_id, created_at, id, user_id, content, is_anonymous)
		 VALUES (?, ?, ?, ?, ?, false)`,
		c.MessageID, c.CreatedAt, c.ID, c.UserID, c.Content).WithContext(ctx).Exec(); err != nil {
		return models.Comment{}, fmt.Errorf("save comment: %w", err)
	}
	if err := g.session.Query(
		`INSERT INTO comment_index (id, message_id, created_at) VALUES (?, ?, ?)`,
		c.ID, c.MessageID, c.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return models.Comment{}, fmt.Errorf("index comment: %w", err)
	}
	if err := g.session.Query(
		`UPDATE message_counters SET comments_count = comments_count + 1 WHERE message_id = ?`,
		c.MessageID).WithContext(ctx).Exec(); err != nil {
		return models.Comment{}, fmt.Errorf("bump comment counter: %w", err)
	}
	return c, nil
}

// lookupComment resolves a comment's full primary key from the index table.
func (g *CassandraGateway) lookupComment(ctx context.Context, commentID string) (messageID string, createdAt time.Time, err error) {
	err = g.session.Query(
		`SELECT message_id, created_at FROM comment_index WHERE id = ?`, commentID).
		WithContext(ctx).Scan(&messageID, &createdAt)
	if err == gocql.ErrNotFound {
		return "", time.Time{}, ErrCommentNotFound
	}
	return messageID, createdAt, err
}

// UpdateComment replaces a comment's content.
func (g *CassandraGateway) UpdateComment(ctx context.Context, commentID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	messageID, createdAt, err := g.lookupComment(ctx, commentID)
	if err != nil {
		return err
	}
	return g.session.Query(
		`UPDATE comments SET content = ? WHERE message_id = ? AND created_at = ? AND id = ?`,
		content, messageID, createdAt, commentID).WithContext(ctx).Exec()
}

// DeleteComment removes a comment and decrements the counter.
func (g *CassandraGateway) DeleteComment(ctx context.Context, commentID string) error {
	messageID, createdAt, err := g.lookupComment(ctx, commentID)
	if err != nil {
		return err
	}

	if err := g.session.Query(
		`DELETE FROM comments WHERE message_id = ? AND created_at = ? AND id = ?`,
		messageID, createdAt, commentID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if err := g.session.Query(
		`DELETE FROM comment_index WHERE id = ?`, commentID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete comment index: %w", err)
	}
	return g.session.Query(
		`UPDATE message_counters SET comments_count = comments_count - 1 WHERE message_id = ?`,
		messageID).WithContext(ctx).Exec()
}

// DeleteMessage removes a message, its comment thread, and its counter row.
func (g *CassandraGateway) DeleteMessage(ctx context.Context, messageID string) error {
	applied, err := g.session.Query(
		`DELETE FROM messages WHERE id = ? IF EXISTS`, messageID).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if !applied {
		return ErrMessageNotFound
	}

	iter := g.session.Query(
		`SELECT id FROM comments WHERE message_id = ?`, messageID).WithContext(ctx).Iter()
	var commentID string
	for iter.Scan(&commentID) {
		_ = g.session.Query(`DELETE FROM comment_index WHERE id = ?`, commentID).WithContext(ctx).Exec()
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("clear comment index: %w", err)
	}

	if err := g.session.Query(
		`DELETE FROM comments WHERE message_id = ?`, messageID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	return g.session.Query(
		`DELETE FROM message_counters WHERE message_id = ?`, messageID).WithContext(ctx).Exec()
}

// DeleteMessages deletes each id independently, returning confirmed ids.
func (g *CassandraGateway) DeleteMessages(ctx context.Context, ids []string) ([]string, error) {
	return deleteEach(ctx, ids, g.DeleteMessage)
}

// GetProfile fetches a single author profile.
func (g *CassandraGateway) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var id, fullName, username, email string
	err := g.session.Query(
		`SELECT id, full_name, username, email FROM profiles WHERE id = ?`, userID).
		WithContext(ctx).Scan(&id, &fullName, &username, &email)
	if err == gocql.ErrNotFound {
		return models.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return models.Profile{ID: id, FullName: optional(fullName), Username: optional(username), Email: email}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Gateway = (*CassandraGateway)(nil)
