package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

func newTestConversationRepository(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationRepository(db), mock
}

func TestConversationRepository_AppendMessageAssignsNextSeq(t *testing.T) {
	repo, mock := newTestConversationRepository(t)
	msg := &models.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "driver-b",
		Type:           models.MessageText,
		Payload:        models.TextPayload{Text: "on my way"},
		SentAt:         time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT last_seq FROM conversations WHERE id = \\$1 FOR UPDATE").
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("msg-1", "conv-1", 8, "driver-b", "text", []byte(`{"text":"on my way"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE conversations SET last_seq = \\$1 WHERE id = \\$2").
		WithArgs(8, "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stored, err := repo.AppendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stored.Seq)
	assert.Equal(t, int64(0), msg.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_AppendMessageUnknownConversation(t *testing.T) {
	repo, mock := newTestConversationRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT last_seq FROM conversations").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.AppendMessage(context.Background(), &models.Message{
		ConversationID: "missing",
		Type:           models.MessageText,
		Payload:        models.TextPayload{Text: "hi"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_ListMessagesDecodesPayloads(t *testing.T) {
	repo, mock := newTestConversationRepository(t)
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, conversation_id, seq, sender_id, type, payload, sent_at FROM messages").
		WithArgs("conv-1", 0, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "seq", "sender_id", "type", "payload", "sent_at"}).
			AddRow("m1", "conv-1", int64(1), "driver-b", "text", []byte(`{"text":"hello"}`), sentAt).
			AddRow("m2", "conv-1", int64(2), "poster", "payment_link", []byte(`{"url":"https://pay.example/x","amount":4000}`), sentAt))

	messages, err := repo.ListMessages(context.Background(), "conv-1", 0, 100)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.TextPayload{Text: "hello"}, messages[0].Payload)
	link, ok := messages[1].Payload.(models.PaymentLinkPayload)
	require.True(t, ok)
	assert.Equal(t, int64(4000), link.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_AdvanceReadCursorIsMonotonic(t *testing.T) {
	repo, mock := newTestConversationRepository(t)

	mock.ExpectQuery("INSERT INTO conversation_read_cursors (.+) GREATEST").
		WithArgs("conv-1", "poster", 3).
		WillReturnRows(sqlmock.NewRows([]string{"last_read_seq"}).AddRow(int64(5)))

	cursor, err := repo.AdvanceReadCursor(context.Background(), "conv-1", "poster", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_GetConversationByOffer(t *testing.T) {
	repo, mock := newTestConversationRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE offer_id = \\$1").
		WithArgs("offer-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "offer_id", "participant_a", "participant_b", "last_seq", "created_at"}).
			AddRow("conv-1", "offer-1", "poster", "driver-b", int64(2), time.Now()))

	conv, err := repo.GetConversationByOffer(context.Background(), "offer-1")
	require.NoError(t, err)
	assert.Equal(t, "driver-b", conv.Counterparty("poster"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
