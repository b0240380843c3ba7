// Package session owns the strictly ordered session protocol: card login,
// preference capture, PIN validation with lockout, overview finalization, and
// the authorization checks that gate every transaction afterwards.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/store"
)

type Manager struct {
	store          store.Store
	jwtSecret      string
	ttl            time.Duration
	maxPinAttempts int
	now            func() time.Time
}

func NewManager(st store.Store, jwtSecret string, ttl time.Duration, maxPinAttempts int) *Manager {
	return &Manager{
		store:          st,
		jwtSecret:      jwtSecret,
		ttl:            ttl,
		maxPinAttempts: maxPinAttempts,
		now:            time.Now,
	}
}

// NewManagerAt fixes the clock, for expiry tests.
func NewManagerAt(st store.Store, jwtSecret string, ttl time.Duration, maxPinAttempts int, now func() time.Time) *Manager {
	m := NewManager(st, jwtSecret, ttl, maxPinAttempts)
	m.now = now
	return m
}

type LoginResult struct {
	Session *domain.Session
	Token   string
}

// Login opens a session from swiped track data. The card must exist and be
// ACTIVE; the caller learns only that authentication failed, not why.
func (m *Manager) Login(ctx context.Context, track2 string) (*LoginResult, error) {
	pan := domain.PANFromTrack2(track2)
	if pan == "" {
		return nil, fmt.Errorf("Login: %w", domain.ErrAuthFailed)
	}

	card, err := m.store.CardByPAN(ctx, pan)
	if err != nil {
		return nil, fmt.Errorf("Login: %w", domain.ErrAuthFailed)
	}
	if !card.Usable() {
		logging.FromContext(ctx).Warn("login with unusable card", "card_status", card.Status)
		return nil, fmt.Errorf("Login: card is %s: %w", card.Status, domain.ErrAuthFailed)
	}

	now := m.now().UTC()
	sess := &domain.Session{
		ID:         uuid.New(),
		CustomerID: card.CustomerID,
		CardID:     card.ID,
		MaskedPAN:  card.MaskedPAN,
		Status:     domain.SessionStatusActive,
		Phase:      domain.PhaseLoginOK,
		Outcomes:   make(map[domain.Phase]domain.PhaseOutcome),
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}

	token, err := auth.GenerateSessionToken(sess.ID, sess.CustomerID, m.jwtSecret, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}

	logging.FromContext(ctx).Info("session opened",
		"session_id", sess.ID,
		"masked_pan", sess.MaskedPAN,
	)
	return &LoginResult{Session: sess, Token: token}, nil
}

// Get loads a session and enforces its liveness. An expired session is marked
// EXPIRED on first touch; a locked one is rejected outright.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	sess, err := m.store.SessionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	switch sess.Status {
	case domain.SessionStatusLocked:
		return nil, fmt.Errorf("Get: %w", domain.ErrSessionLocked)
	case domain.SessionStatusExpired:
		return nil, fmt.Errorf("Get: %w", domain.ErrSessionExpired)
	}

	if sess.ExpiredAt(m.now()) {
		sess.Status = domain.SessionStatusExpired
		if err := m.store.UpdateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("Get: %w", err)
		}
		return nil, fmt.Errorf("Get: %w", domain.ErrSessionExpired)
	}
	return sess, nil
}

// SetPreferences records language, receipt, and fast-cash choices and moves
// the session from LOGIN_OK to PREFERENCES_SET.
func (m *Manager) SetPreferences(ctx context.Context, sess *domain.Session, prefs domain.Preferences) error {
	if err := requirePhase(sess, domain.PhaseLoginOK); err != nil {
		return fmt.Errorf("SetPreferences: %w", err)
	}
	if prefs.ReceiptMode != "" && !prefs.ReceiptMode.IsValid() {
		return fmt.Errorf("SetPreferences: receipt mode %q: %w", prefs.ReceiptMode, domain.ErrValidation)
	}

	sess.Preferences = prefs
	sess.Phase = domain.PhasePreferencesSet
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("SetPreferences: %w", err)
	}
	return nil
}

// ValidatePin verifies the PIN block against the customer's stored hash.
// Each miss increments the counter; reaching the cap locks the session for
// good. Success resets the counter and advances to PIN_VALIDATED, returning
// the customer's accounts for the overview screen.
func (m *Manager) ValidatePin(ctx context.Context, sess *domain.Session, pinBlock string) ([]domain.Account, error) {
	if err := requirePhase(sess, domain.PhasePreferencesSet); err != nil {
		return nil, fmt.Errorf("ValidatePin: %w", err)
	}

	pin, err := auth.DecodePinBlock(pinBlock)
	if err != nil {
		return nil, fmt.Errorf("ValidatePin: %w", domain.ErrValidation)
	}

	customer, err := m.store.CustomerByID(ctx, sess.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("ValidatePin: %w", err)
	}

	if !auth.VerifyPIN(pin, customer.PINHash) {
		sess.PinAttempts++
		if sess.PinAttempts >= m.maxPinAttempts {
			sess.Status = domain.SessionStatusLocked
			if err := m.store.UpdateSession(ctx, sess); err != nil {
				return nil, fmt.Errorf("ValidatePin: %w", err)
			}
			logging.FromContext(ctx).Warn("session locked after pin attempts",
				"session_id", sess.ID,
				"attempts", sess.PinAttempts,
			)
			return nil, fmt.Errorf("ValidatePin: %w", domain.ErrPinLocked)
		}
		if err := m.store.UpdateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("ValidatePin: %w", err)
		}
		return nil, fmt.Errorf("ValidatePin: attempt %d of %d: %w",
			sess.PinAttempts, m.maxPinAttempts, domain.ErrPinMismatch)
	}

	sess.PinAttempts = 0
	sess.Phase = domain.PhasePinValidated
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("ValidatePin: %w", err)
	}

	accounts, err := m.store.AccountsByCustomer(ctx, sess.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("ValidatePin: %w", err)
	}
	return accounts, nil
}

// FinalizeOverview closes the handshake. Confirmation unlocks transaction
// endpoints; cancellation ends the session.
func (m *Manager) FinalizeOverview(ctx context.Context, sess *domain.Session, confirmed bool) error {
	if err := requirePhase(sess, domain.PhasePinValidated); err != nil {
		return fmt.Errorf("FinalizeOverview: %w", err)
	}

	if !confirmed {
		sess.Status = domain.SessionStatusExpired
		if err := m.store.UpdateSession(ctx, sess); err != nil {
			return fmt.Errorf("FinalizeOverview: %w", err)
		}
		logging.FromContext(ctx).Info("session cancelled at overview", "session_id", sess.ID)
		return nil
	}

	sess.Phase = domain.PhaseOverviewFinalized
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("FinalizeOverview: %w", err)
	}
	return nil
}

// RequireAuthorized gates every transaction and conversation endpoint: the
// full handshake must have completed first.
func (m *Manager) RequireAuthorized(sess *domain.Session) error {
	if sess.Phase < domain.PhaseOverviewFinalized {
		return fmt.Errorf("RequireAuthorized: session in %s: %w", sess.Phase, domain.ErrSequence)
	}
	return nil
}

// End expires a session explicitly, e.g. on card eject.
func (m *Manager) End(ctx context.Context, sess *domain.Session) error {
	sess.Status = domain.SessionStatusExpired
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("End: %w", err)
	}
	return nil
}

// HashRequest fingerprints a phase request body for replay detection.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Replay returns the stored response when the same phase is re-issued with an
// identical request. A different request against a consumed phase is a
// sequence violation.
func (m *Manager) Replay(sess *domain.Session, phase domain.Phase, requestHash string) (json.RawMessage, bool, error) {
	outcome, ok := sess.Outcomes[phase]
	if !ok {
		return nil, false, nil
	}
	if outcome.RequestHash != requestHash {
		return nil, false, fmt.Errorf("Replay: phase %s already consumed: %w", phase, domain.ErrSequence)
	}
	return outcome.Response, true, nil
}

// RecordOutcome snapshots a successful phase response for later replay.
func (m *Manager) RecordOutcome(ctx context.Context, sess *domain.Session, phase domain.Phase, requestHash string, response json.RawMessage) error {
	if sess.Outcomes == nil {
		sess.Outcomes = make(map[domain.Phase]domain.PhaseOutcome)
	}
	sess.Outcomes[phase] = domain.PhaseOutcome{RequestHash: requestHash, Response: response}
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("RecordOutcome: %w", err)
	}
	return nil
}

func requirePhase(sess *domain.Session, want domain.Phase) error {
	if sess.Phase != want {
		return fmt.Errorf("session in %s, expected %s: %w", sess.Phase, want, domain.ErrSequence)
	}
	return nil
}
