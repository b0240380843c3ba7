package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

const flowColumns = `id, intent_id, steps, status, created_at, updated_at`

func (s *Store) CreateFlow(ctx context.Context, f *domain.ScreenFlow) error {
	steps, err := json.Marshal(f.Steps)
	if err != nil {
		return fmt.Errorf("CreateFlow: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO screen_flows (`+flowColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.IntentID, steps, f.Status, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateFlow: %w", err)
	}
	return nil
}

func (s *Store) FlowByID(ctx context.Context, id uuid.UUID) (*domain.ScreenFlow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+flowColumns+` FROM screen_flows WHERE id = $1`, id,
	)
	f, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FlowByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FlowByID: %w", err)
	}
	return f, nil
}

func (s *Store) FlowByIntent(ctx context.Context, intentID uuid.UUID) (*domain.ScreenFlow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+flowColumns+` FROM screen_flows WHERE intent_id = $1
		ORDER BY created_at DESC LIMIT 1`,
		intentID,
	)
	f, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FlowByIntent: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FlowByIntent: %w", err)
	}
	return f, nil
}

func (s *Store) UpdateFlow(ctx context.Context, f *domain.ScreenFlow) error {
	return updateFlow(ctx, s.db, f)
}

func updateFlow(ctx context.Context, q querier, f *domain.ScreenFlow) error {
	steps, err := json.Marshal(f.Steps)
	if err != nil {
		return fmt.Errorf("updateFlow: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`UPDATE screen_flows SET steps = $1, status = $2, updated_at = $3 WHERE id = $4`,
		steps, f.Status, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return fmt.Errorf("updateFlow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updateFlow: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("updateFlow: %w", domain.ErrNotFound)
	}
	return nil
}

func scanFlow(s scanner) (*domain.ScreenFlow, error) {
	var (
		f     domain.ScreenFlow
		steps []byte
	)
	err := s.Scan(&f.ID, &f.IntentID, &steps, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &f.Steps); err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	return &f, nil
}

func (s *Store) AppendMessage(ctx context.Context, m *domain.ConversationMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (id, session_id, sender, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, m.Sender, m.Content, nullRaw(m.Metadata), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("AppendMessage: %w", err)
	}
	return nil
}

// RecentMessages returns the last N messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, sender, content, metadata, created_at FROM (
			SELECT id, session_id, sender, content, metadata, created_at
			FROM conversation_messages WHERE session_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("RecentMessages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var (
			m        domain.ConversationMessage
			metadata []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("RecentMessages: scan: %w", err)
		}
		if len(metadata) > 0 {
			m.Metadata = json.RawMessage(metadata)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentMessages: rows: %w", err)
	}
	return messages, nil
}

func (s *Store) CreateReceipt(ctx context.Context, r *domain.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (id, transaction_id, mode, email, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.TransactionID, r.Mode, r.Email, r.Content, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateReceipt: %w", err)
	}
	return nil
}

const limitColumns = `account_id, limit_date, total_withdrawals, total_deposits, total_transfers,
	withdrawal_count, deposit_count, transfer_count, updated_at`

func (s *Store) LimitRecord(ctx context.Context, accountID uuid.UUID, date string) (*domain.DailyLimitRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+limitColumns+` FROM daily_limit_records WHERE account_id = $1 AND limit_date = $2`,
		accountID, date,
	)
	rec, err := scanLimitRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewDailyLimitRecord(accountID, date), nil
		}
		return nil, fmt.Errorf("LimitRecord: %w", err)
	}
	return rec, nil
}

func scanLimitRecord(s scanner) (*domain.DailyLimitRecord, error) {
	var rec domain.DailyLimitRecord
	err := s.Scan(
		&rec.AccountID, &rec.Date, &rec.TotalWithdrawals, &rec.TotalDeposits, &rec.TotalTransfers,
		&rec.WithdrawalCount, &rec.DepositCount, &rec.TransferCount, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
