package gateway

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"razdel/internal/models"
)

// PostgresGateway is the relational-backend adapter, backed by sqlx.
type PostgresGateway struct {
	db *sqlx.DB
}

// NewPostgresGateway constructs a PostgresGateway.
func NewPostgresGateway(db *sqlx.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

const messageColumns = `id, title, content, content_type, audio_url, emotion_category,
	is_public, is_anonymous, listener_type, ai_response, human_response,
	likes_count, comments_count, created_at, user_id`

// ListUserMessages returns the caller's own messages, newest first.
func (g *PostgresGateway) ListUserMessages(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := g.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	return msgs, err
}

type messageRow struct {
	models.Message
	AuthorID       sql.NullString `db:"author_id"`
	AuthorFullName sql.NullString `db:"author_full_name"`
	AuthorUsername sql.NullString `db:"author_username"`
	AuthorEmail    sql.NullString `db:"author_email"`
}

// ListPublicMessages returns public messages with author profiles, newest first.
func (g *PostgresGateway) ListPublicMessages(ctx context.Context) ([]models.Message, error) {
	query := `SELECT m.id, m.title, m.content, m.content_type, m.audio_url, m.emotion_category,
			m.is_public, m.is_anonymous, m.listener_type, m.ai_response, m.human_response,
			m.likes_count, m.comments_count, m.created_at, m.user_id,
			p.id AS author_id, p.full_name AS author_full_name,
			p.username AS author_username, p.email AS author_email
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.is_public = TRUE
		ORDER BY m.created_at DESC`

	var rows []messageRow
	if err := g.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msg := row.Message
		msg.Author = profileFromRow(row.AuthorID, row.AuthorFullName, row.AuthorUsername, row.AuthorEmail)
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

type commentRow struct {
	models.Comment
	AuthorID       sql.NullString `db:"author_id"`
	AuthorFullName sql.NullString `db:"author_full_name"`
	AuthorUsername sql.NullString `db:"author_username"`
	AuthorEmail    sql.NullString `db:"author_email"`
}

// ListComments returns a message's comments in ascending creation order with
// author profiles joined.
func (g *PostgresGateway) ListComments(ctx context.Context, messageID string) ([]models.Comment, error) {
	query := `SELECT c.id, c.message_id, c.user_id, c.content, c.is_anonymous, c.created_at,
			p.id AS author_id, p.full_name AS author_full_name,
			p.username AS author_username, p.email AS author_email
		FROM comments c
		LEFT JOIN profiles p ON p.id = c.user_id
		WHERE c.message_id=$1
		ORDER BY c.created_at ASC`

	var rows []commentRow
	if err := g.db.SelectContext(ctx, &rows, query, messageID); err != nil {
		return nil, err
	}

	comments := make([]models.Comment, 0, len(rows))
	for _, row := range rows {
		c := row.Comment
		c.Author = profileFromRow(row.AuthorID, row.AuthorFullName, row.AuthorUsername, row.AuthorEmail)
		comments = append(comments, c)
	}
	return comments, nil
}

// CreateComment stores a comment and bumps the parent message's counter.
func (g *PostgresGateway) CreateComment(ctx context.Context, messageID, userID, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyContent
	}

	var c models.Comment
	err := g.db.QueryRowxContext(ctx,
		`INSERT INTO comments (id, message_id, user_id, content, is_anonymous)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING id, message_id, user_id, content, is_anonymous, created_at`,
		uuid.NewString(), messageID, userID, content).
		Scan(&c.ID, &c.MessageID, &c.UserID, &c.Content, &c.IsAnonymous, &c.CreatedAt)
	if err != nil {
		return models.Comment{}, err
	}

	_, err = g.db.ExecContext(ctx,
		`UPDATE messages SET comments_count = comments_count + 1 WHERE id=$1`, messageID)
	return c, err
}

// UpdateComment replaces a comment's content.
func (g *PostgresGateway) UpdateComment(ctx context.Context, commentID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	res, err := g.db.ExecContext(ctx, `UPDATE comments SET content=$1 WHERE id=$2`, content, commentID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// DeleteComment removes a comment and decrements the parent counter, floored
// at zero.
func (g *PostgresGateway) DeleteComment(ctx context.Context, commentID string) error {
	var messageID string
	err := g.db.GetContext(ctx, &messageID, `DELETE FROM comments WHERE id=$1 RETURNING message_id`, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}

	_, err = g.db.ExecContext(ctx,
		`UPDATE messages SET comments_count = GREATEST(comments_count - 1, 0) WHERE id=$1`, messageID)
	return err
}

// DeleteMessage removes a message; comments cascade.
func (g *PostgresGateway) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteMessages deletes each id independently, returning confirmed ids.
func (g *PostgresGateway) DeleteMessages(ctx context.Context, ids []string) ([]string, error) {
	return deleteEach(ctx, ids, g.DeleteMessage)
}

// GetProfile fetches a single author profile.
func (g *PostgresGateway) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	err := g.db.GetContext(ctx, &p,
		`SELECT id, full_name, username, email FROM profiles WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

func profileFromRow(id, fullName, username, email sql.NullString) *models.Profile {
	if !id.Valid {
		return nil
	}
	p := &models.Profile{ID: id.String, Email: email.String}
	if fullName.Valid {
		p.FullName = &fullName.String
	}
	if username.Valid {
		p.Username = &username.String
	}
	return p
}

var _ Gateway = (*PostgresGateway)(nil)
