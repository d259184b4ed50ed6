package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
)

type messagesRepo struct {
	db *sql.DB
}

const messageColumns = `id, sender_id, receiver_id, type, content, read, read_at, created_at`

func scanMessage(row interface {
	Scan(dest ...any) error
}) (domain.Message, error) {
	var (
		m      domain.Message
		readAt sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.SenderID, &m.ReceiverID, &m.Type, &m.Content,
		&m.Read, &readAt, &m.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	m.ReadAt = mapNullTime(readAt)
	return m, nil
}

func (r *messagesRepo) CreateMessage(ctx context.Context, m domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, type, content, read, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Type, m.Content,
		m.Read, toNullTime(m.ReadAt), m.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *messagesRepo) GetMessageByID(ctx context.Context, id string) (domain.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err != nil {
		return domain.Message{}, mapNotFound(err)
	}
	return m, nil
}

func (r *messagesRepo) ListBetween(
	ctx context.Context,
	a, b string,
	limit, offset int,
) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	// Page back from the newest message, then flip so the page itself
	// reads oldest first.
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		a, b, b, a, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messagesRepo) MarkConversationRead(
	ctx context.Context,
	readerID, senderID string,
	at time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read = 1, read_at = ?
		WHERE receiver_id = ? AND sender_id = ? AND read = 0`,
		at.UTC(), readerID, senderID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *messagesRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND read = 0`,
		userID,
	).Scan(&n)
	return n, err
}

// ListContacts aggregates conversation partners with the latest message and
// the unread count for each, newest conversation first.
func (r *messagesRepo) ListContacts(ctx context.Context, userID string) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH partners AS (
			SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id,
			       MAX(created_at) AS last_at
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
			GROUP BY partner_id
		)
		SELECT u.id, u.username, u.profile_picture, u.bio, u.last_login,
		       m.id, m.sender_id, m.receiver_id, m.type, m.content, m.read, m.read_at, m.created_at,
		       (SELECT COUNT(*) FROM messages
		        WHERE receiver_id = ? AND sender_id = p.partner_id AND read = 0) AS unread
		FROM partners p
		JOIN users u ON u.id = p.partner_id
		JOIN messages m ON m.created_at = p.last_at
		  AND ((m.sender_id = ? AND m.receiver_id = p.partner_id)
		    OR (m.sender_id = p.partner_id AND m.receiver_id = ?))
		GROUP BY p.partner_id
		ORDER BY p.last_at DESC`,
		userID, userID, userID, userID, userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var (
			c         domain.Contact
			lastLogin sql.NullTime
			m         domain.Message
			readAt    sql.NullTime
		)
		err := rows.Scan(
			&c.User.ID, &c.User.Username, &c.User.ProfilePicture, &c.User.Bio, &lastLogin,
			&m.ID, &m.SenderID, &m.ReceiverID, &m.Type, &m.Content, &m.Read, &readAt, &m.CreatedAt,
			&c.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		c.User.LastLogin = mapNullTime(lastLogin)
		m.ReadAt = mapNullTime(readAt)
		c.LastMessage = &m
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
