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

const sessionColumns = `id, customer_id, card_id, masked_pan, pin_attempts, status,
	phase, preferences, outcomes, created_at, expires_at`

// Preferences and phase outcomes travel as JSONB; the phase itself is the
// integer position so ordering comparisons stay in SQL range queries.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	prefs, outcomes, err := marshalSessionBlobs(sess)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (
			id, customer_id, card_id, masked_pan, pin_attempts, status,
			phase, preferences, outcomes, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sess.ID, sess.CustomerID, sess.CardID, sess.MaskedPAN, sess.PinAttempts, sess.Status,
		int(sess.Phase), prefs, outcomes, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	return nil
}

func (s *Store) SessionByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("SessionByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("SessionByID: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	prefs, outcomes, err := marshalSessionBlobs(sess)
	if err != nil {
		return fmt.Errorf("UpdateSession: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET pin_attempts = $1, status = $2, phase = $3,
			preferences = $4, outcomes = $5, expires_at = $6
		WHERE id = $7`,
		sess.PinAttempts, sess.Status, int(sess.Phase), prefs, outcomes, sess.ExpiresAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateSession: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateSession: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateSession: %w", domain.ErrNotFound)
	}
	return nil
}

func marshalSessionBlobs(sess *domain.Session) ([]byte, []byte, error) {
	prefs, err := json.Marshal(sess.Preferences)
	if err != nil {
		return nil, nil, err
	}
	if sess.Outcomes == nil {
		sess.Outcomes = make(map[domain.Phase]domain.PhaseOutcome)
	}
	outcomes, err := json.Marshal(sess.Outcomes)
	if err != nil {
		return nil, nil, err
	}
	return prefs, outcomes, nil
}

func scanSession(s scanner) (*domain.Session, error) {
	var (
		sess     domain.Session
		phase    int
		prefs    []byte
		outcomes []byte
	)
	err := s.Scan(
		&sess.ID, &sess.CustomerID, &sess.CardID, &sess.MaskedPAN, &sess.PinAttempts, &sess.Status,
		&phase, &prefs, &outcomes, &sess.CreatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	sess.Phase = domain.Phase(phase)
	if err := json.Unmarshal(prefs, &sess.Preferences); err != nil {
		return nil, fmt.Errorf("preferences: %w", err)
	}
	if err := json.Unmarshal(outcomes, &sess.Outcomes); err != nil {
		return nil, fmt.Errorf("outcomes: %w", err)
	}
	return &sess, nil
}
