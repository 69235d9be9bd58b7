package services

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

// ConversationStore persists conversations, their ordered messages and the
// per-participant read cursors.
type ConversationStore interface {
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	GetConversationByOffer(ctx context.Context, offerID string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]models.Message, error)
	AdvanceReadCursor(ctx context.Context, conversationID, readerID string, upToSeq int64) (int64, error)
	ReadCursors(ctx context.Context, conversationID string) (map[string]int64, error)
	DetailsSenders(ctx context.Context, conversationID string) ([]string, error)
}

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = "id, offer_id, participant_a, participant_b, last_seq, created_at"

func (r *ConversationRepository) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return r.getOne(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, conversationID)
}

func (r *ConversationRepository) GetConversationByOffer(ctx context.Context, offerID string) (*models.Conversation, error) {
	return r.getOne(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE offer_id = $1`, offerID)
}

func (r *ConversationRepository) getOne(ctx context.Context, query, arg string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&c.ID, &c.OfferID, &c.ParticipantA, &c.ParticipantB, &c.LastSeq, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.CodeNotFound, "conversation not found")
	}
	if err != nil {
		return nil, storageError("get conversation", err)
	}
	return &c, nil
}

// AppendMessage assigns the next sequence number under a row lock on the
// conversation, so concurrent senders see a gap-free order.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	payload, err := models.EncodePayload(msg.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "encode payload")
	}

	stored := *msg
	err = withTx(ctx, r.db, "append message", func(tx *sql.Tx) error {
		var lastSeq int64
		err := tx.QueryRowContext(ctx,
			`SELECT last_seq FROM conversations WHERE id = $1 FOR UPDATE`, msg.ConversationID).Scan(&lastSeq)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.CodeNotFound, "conversation not found")
		}
		if err != nil {
			return err
		}

		stored.Seq = lastSeq + 1
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, seq, sender_id, type, payload, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			stored.ID, stored.ConversationID, stored.Seq, stored.SenderID, string(stored.Type), []byte(payload), stored.SentAt); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE conversations SET last_seq = $1 WHERE id = $2`, stored.Seq, stored.ConversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, seq, sender_id, type, payload, sent_at
		FROM messages
		WHERE conversation_id = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3`, conversationID, afterSeq, limit)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var (
			m   models.Message
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.SenderID, &m.Type, &raw, &m.SentAt); err != nil {
			return nil, storageError("list messages", err)
		}
		m.Payload, err = models.DecodePayload(m.Type, json.RawMessage(raw))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "decode stored payload")
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list messages", err)
	}
	return messages, nil
}

// AdvanceReadCursor moves the reader's cursor forward and returns its
// resulting position. Cursors never move backwards.
func (r *ConversationRepository) AdvanceReadCursor(ctx context.Context, conversationID, readerID string, upToSeq int64) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO conversation_read_cursors (conversation_id, reader_id, last_read_seq)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, reader_id)
		DO UPDATE SET last_read_seq = GREATEST(conversation_read_cursors.last_read_seq, EXCLUDED.last_read_seq)
		RETURNING last_read_seq`, conversationID, readerID, upToSeq).Scan(&cursor)
	if err != nil {
		return 0, storageError("advance read cursor", err)
	}
	return cursor, nil
}

func (r *ConversationRepository) ReadCursors(ctx context.Context, conversationID string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT reader_id, last_read_seq FROM conversation_read_cursors WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, storageError("read cursors", err)
	}
	defer rows.Close()

	cursors := make(map[string]int64)
	for rows.Next() {
		var (
			reader string
			seq    int64
		)
		if err := rows.Scan(&reader, &seq); err != nil {
			return nil, storageError("read cursors", err)
		}
		cursors[reader] = seq
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("read cursors", err)
	}
	return cursors, nil
}

// DetailsSenders lists participants that have sent driver_details at least once.
func (r *ConversationRepository) DetailsSenders(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT sender_id
		FROM messages
		WHERE conversation_id = $1 AND type = 'driver_details'`, conversationID)
	if err != nil {
		return nil, storageError("details senders", err)
	}
	defer rows.Close()

	var senders []string
	for rows.Next() {
		var sender string
		if err := rows.Scan(&sender); err != nil {
			return nil, storageError("details senders", err)
		}
		senders = append(senders, sender)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("details senders", err)
	}
	return senders, nil
}
