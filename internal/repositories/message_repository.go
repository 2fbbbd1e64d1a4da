package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"helpdesk-service/internal/models"
)

var ErrConversationEmpty = errors.New("conversation has no messages")

// MessageRepository defines interactions with the durable conversation store.
// Archive and mark-read operations are single bulk statements so a failure is
// never partially applied.
type MessageRepository interface {
	CreateMessage(ctx context.Context, ownerID int, senderRole models.Role, senderName, text string, archived bool) (models.Message, error)
	ListConversation(ctx context.Context, ownerID int, includeArchived bool) ([]models.Message, error)
	LatestMessage(ctx context.Context, ownerID int) (models.Message, error)
	ArchiveConversation(ctx context.Context, ownerID int) error
	MarkConversationRead(ctx context.Context, ownerID int) error
	UnreadCount(ctx context.Context, ownerID int) (int, error)
	ListConversationSummaries(ctx context.Context) ([]models.ConversationSummary, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, owner_id, sender_role, sender_name, text, is_read, is_archived, created_at`

// CreateMessage appends one message to the owner's conversation. Staff-authored
// rows are stored pre-read; is_read only tracks staff-side reads of client rows.
func (r *MessageRepo) CreateMessage(ctx context.Context, ownerID int, senderRole models.Role, senderName, text string, archived bool) (models.Message, error) {
	isRead := senderRole.IsStaff()
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (owner_id, sender_role, sender_name, text, is_read, is_archived)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+messageColumns,
		ownerID, senderRole, senderName, text, isRead, archived).
		Scan(&msg.ID, &msg.OwnerID, &msg.SenderRole, &msg.SenderName, &msg.Text, &msg.IsRead, &msg.IsArchived, &msg.CreatedAt)
	return msg, err
}

// ListConversation returns the owner's messages in insertion order, optionally
// filtered to the unarchived (client-facing) view.
func (r *MessageRepo) ListConversation(ctx context.Context, ownerID int, includeArchived bool) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE owner_id=$1`
	if !includeArchived {
		query += ` AND is_archived = FALSE`
	}
	query += ` ORDER BY id ASC`

	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, ownerID)
	return msgs, err
}

// LatestMessage returns the most recent row; its archived bit is the
// conversation's effective state.
func (r *MessageRepo) LatestMessage(ctx context.Context, ownerID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE owner_id=$1 ORDER BY id DESC LIMIT 1`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrConversationEmpty
	}
	return msg, err
}

// ArchiveConversation archives every row owned by ownerID in one statement.
// Archiving an already-archived conversation is a no-op.
func (r *MessageRepo) ArchiveConversation(ctx context.Context, ownerID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_archived = TRUE WHERE owner_id=$1`, ownerID)
	return err
}

// MarkConversationRead marks all client-authored rows of the conversation read.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, ownerID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE owner_id=$1 AND sender_role=$2 AND is_read = FALSE`,
		ownerID, models.RoleClient)
	return err
}

// UnreadCount counts unread client-authored rows for one owner.
func (r *MessageRepo) UnreadCount(ctx context.Context, ownerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE owner_id=$1 AND sender_role=$2 AND is_read = FALSE`,
		ownerID, models.RoleClient)
	return count, err
}

// ListConversationSummaries returns, for every owner, the latest message plus
// the unread count, newest conversations first.
func (r *MessageRepo) ListConversationSummaries(ctx context.Context) ([]models.ConversationSummary, error) {
	var latest []models.Message
	err := r.db.SelectContext(ctx, &latest,
		`SELECT DISTINCT ON (owner_id) `+messageColumns+`
         FROM messages ORDER BY owner_id, id DESC`)
	if err != nil {
		return nil, err
	}

	type unreadRow struct {
		OwnerID int `db:"owner_id"`
		Count   int `db:"count"`
	}
	var unread []unreadRow
	err = r.db.SelectContext(ctx, &unread,
		`SELECT owner_id, COUNT(*) AS count FROM messages
         WHERE sender_role=$1 AND is_read = FALSE GROUP BY owner_id`, models.RoleClient)
	if err != nil {
		return nil, err
	}
	unreadByOwner := make(map[int]int, len(unread))
	for _, row := range unread {
		unreadByOwner[row.OwnerID] = row.Count
	}

	summaries := make([]models.ConversationSummary, 0, len(latest))
	for _, msg := range latest {
		summaries = append(summaries, models.ConversationSummary{
			OwnerID:     msg.OwnerID,
			LastMessage: msg,
			UnreadCount: unreadByOwner[msg.OwnerID],
			IsArchived:  msg.IsArchived,
		})
	}

	// Newest activity first.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.ID > summaries[j].LastMessage.ID
	})
	return summaries, nil
}
