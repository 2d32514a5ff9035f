package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/llm"
)

const foreignKeyViolation = "23503"

// EnsureConversation keeps an existing conversation and starts a new one for
// blank, malformed or unknown ids.
func (s *Postgres) EnsureConversation(ctx context.Context, id, sessionID string, product *chat.ProductContext) (string, error) {
	if parsed, err := uuid.Parse(id); err == nil {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1::uuid)`,
			parsed.String(),
		).Scan(&exists); err != nil {
			return "", fmt.Errorf("check conversation: %w", err)
		}
		if exists {
			return parsed.String(), nil
		}
	}

	var productJSON []byte
	if product != nil {
		encoded, err := json.Marshal(product)
		if err != nil {
			return "", fmt.Errorf("encode product context: %w", err)
		}
		productJSON = encoded
	}
	newID := uuid.NewString()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, session_id, product_context)
		VALUES ($1::uuid, $2, $3)`,
		newID, sessionID, productJSON,
	); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	s.logger.Debug("conversation created", zap.String("conversation_id", newID))
	return newID, nil
}

func (s *Postgres) AppendMessage(ctx context.Context, conversationID string, msg chat.Message) error {
	redFlags := msg.RedFlags
	if redFlags == nil {
		redFlags = []string{}
	}
	productIDs := msg.ProductIDs
	if productIDs == nil {
		productIDs = []int64{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (
			conversation_id, role, content, response_type, red_flags_detected,
			products_recommended, tokens_used, processing_time_ms
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)`,
		conversationID, msg.Role, msg.Content, string(msg.ResponseType), redFlags, productIDs,
		msg.TokensUsed, msg.ProcessingTimeMs,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w: %w", chat.ErrConversationNotFound, ErrNotFound)
		}
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *Postgres) GetHistory(ctx context.Context, conversationID string) ([]llm.Turn, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrConversationNotFound, ErrNotFound)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT role, content
		FROM messages
		WHERE conversation_id = $1::uuid
		ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()
	turns := make([]llm.Turn, 0)
	for rows.Next() {
		var turn llm.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return turns, nil
}

func (s *Postgres) MarkEmergency(ctx context.Context, conversationID string) error {
	return s.updateConversation(ctx, `UPDATE conversations SET has_emergency = TRUE WHERE id = $1::uuid`, conversationID)
}

func (s *Postgres) Touch(ctx context.Context, conversationID string) error {
	return s.updateConversation(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, last_message_at = NOW()
		WHERE id = $1::uuid`,
		conversationID,
	)
}

func (s *Postgres) updateConversation(ctx context.Context, sql, conversationID string) error {
	if _, err := uuid.Parse(conversationID); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrConversationNotFound, ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, sql, conversationID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %w", chat.ErrConversationNotFound, ErrNotFound)
	}
	return nil
}

// ConversationSummary reads the bookkeeping columns of one conversation.
func (s *Postgres) ConversationSummary(ctx context.Context, conversationID string) (chat.Conversation, error) {
	var (
		conv        chat.Conversation
		productJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, session_id, product_context, has_emergency, message_count, last_message_at, created_at
		FROM conversations
		WHERE id = $1::uuid`,
		conversationID,
	).Scan(&conv.ID, &conv.SessionID, &productJSON, &conv.HasEmergency, &conv.MessageCount, &conv.LastMessageAt, &conv.CreatedAt)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("read conversation: %w", err)
	}
	if len(productJSON) > 0 {
		var product chat.ProductContext
		if err := json.Unmarshal(productJSON, &product); err != nil {
			return chat.Conversation{}, fmt.Errorf("decode product context: %w", err)
		}
		conv.ProductContext = &product
	}
	return conv, nil
}
