package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store/memory"
	"github.com/conversant-bank/atm-backend/internal/testutil"
)

const testTrack2 = testutil.TestPAN + "=12282011234567890"

func setupManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	st := memory.New()
	customer, _ := testutil.SeedCustomer(t, st)
	testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "2500.00")
	testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeSavings, "4200.00")
	return NewManager(st, testutil.TestSecret, 15*time.Minute, 3), st
}

// walkTo advances a fresh session through the handshake up to the given phase.
func walkTo(t *testing.T, m *Manager, phase domain.Phase) *domain.Session {
	t.Helper()
	ctx := context.Background()

	res, err := m.Login(ctx, testTrack2)
	require.NoError(t, err)
	sess := res.Session
	if phase == domain.PhaseLoginOK {
		return sess
	}

	require.NoError(t, m.SetPreferences(ctx, sess, domain.Preferences{
		Language:    "en",
		ReceiptMode: domain.ReceiptModeEmail,
		Email:       "john.doe@example.com",
	}))
	if phase == domain.PhasePreferencesSet {
		return sess
	}

	_, err = m.ValidatePin(ctx, sess, auth.EncodePinBlock(testutil.TestPIN))
	require.NoError(t, err)
	if phase == domain.PhasePinValidated {
		return sess
	}

	require.NoError(t, m.FinalizeOverview(ctx, sess, true))
	return sess
}

func TestLogin_OpensSessionWithToken(t *testing.T) {
	m, _ := setupManager(t)

	res, err := m.Login(context.Background(), testTrack2)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseLoginOK, res.Session.Phase)
	assert.Equal(t, domain.SessionStatusActive, res.Session.Status)
	assert.Equal(t, "****1111", res.Session.MaskedPAN)

	claims, err := auth.ValidateSessionToken(res.Token, testutil.TestSecret)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, claims.SessionID)
	assert.Equal(t, res.Session.CustomerID, claims.CustomerID)
}

func TestLogin_UnknownOrBlockedCard(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	_, err := m.Login(ctx, "4999999999999999=1228")
	require.ErrorIs(t, err, domain.ErrAuthFailed)

	blockedCustomer, _ := testutil.SeedCustomer2(t, st)
	require.NoError(t, st.CreateCard(ctx, &domain.Card{
		ID:         uuid.New(),
		CustomerID: blockedCustomer.ID,
		PAN:        "4333333333333333",
		MaskedPAN:  domain.MaskPAN("4333333333333333"),
		Status:     domain.CardStatusBlocked,
		Expiry:     "1228",
		CreatedAt:  time.Now().UTC(),
	}))
	_, err = m.Login(ctx, "4333333333333333=1228")
	require.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestPhaseOrderIsEnforced(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess := walkTo(t, m, domain.PhaseLoginOK)

	// PIN validation before preferences is out of order.
	_, err := m.ValidatePin(ctx, sess, auth.EncodePinBlock(testutil.TestPIN))
	require.ErrorIs(t, err, domain.ErrSequence)

	// So is finalizing the overview.
	require.ErrorIs(t, m.FinalizeOverview(ctx, sess, true), domain.ErrSequence)

	// And transactions are gated until the whole handshake is done.
	require.ErrorIs(t, m.RequireAuthorized(sess), domain.ErrSequence)

	sess = walkTo(t, m, domain.PhaseOverviewFinalized)
	require.NoError(t, m.RequireAuthorized(sess))
}

func TestValidatePin_LocksAfterMaxAttempts(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess := walkTo(t, m, domain.PhasePreferencesSet)
	wrong := auth.EncodePinBlock("0000")

	_, err := m.ValidatePin(ctx, sess, wrong)
	require.ErrorIs(t, err, domain.ErrPinMismatch)
	_, err = m.ValidatePin(ctx, sess, wrong)
	require.ErrorIs(t, err, domain.ErrPinMismatch)

	// Third strike locks the session permanently.
	_, err = m.ValidatePin(ctx, sess, wrong)
	require.ErrorIs(t, err, domain.ErrPinLocked)

	_, err = m.Get(ctx, sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionLocked)
}

func TestValidatePin_SuccessResetsAttempts(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess := walkTo(t, m, domain.PhasePreferencesSet)

	_, err := m.ValidatePin(ctx, sess, auth.EncodePinBlock("0000"))
	require.ErrorIs(t, err, domain.ErrPinMismatch)

	accounts, err := m.ValidatePin(ctx, sess, auth.EncodePinBlock(testutil.TestPIN))
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, 0, sess.PinAttempts)
	assert.Equal(t, domain.PhasePinValidated, sess.Phase)
}

func TestGet_ExpiresStaleSessionEagerly(t *testing.T) {
	st := memory.New()
	customer, _ := testutil.SeedCustomer(t, st)
	testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "2500.00")

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManagerAt(st, testutil.TestSecret, 15*time.Minute, 3, func() time.Time { return clock })

	res, err := m.Login(context.Background(), testTrack2)
	require.NoError(t, err)

	clock = clock.Add(16 * time.Minute)
	_, err = m.Get(context.Background(), res.Session.ID)
	require.ErrorIs(t, err, domain.ErrSessionExpired)

	// The expiry is persisted, not just computed per call.
	stored, err := st.SessionByID(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusExpired, stored.Status)
}

func TestFinalizeOverview_CancelEndsSession(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess := walkTo(t, m, domain.PhasePinValidated)
	require.NoError(t, m.FinalizeOverview(ctx, sess, false))

	_, err := m.Get(ctx, sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestReplay_IdenticalRequestReturnsCachedResponse(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess := walkTo(t, m, domain.PhasePreferencesSet)

	body := []byte(`{"Language":"en"}`)
	hash := HashRequest(body)
	response := json.RawMessage(`{"ActionCode":"000"}`)
	require.NoError(t, m.RecordOutcome(ctx, sess, domain.PhasePreferencesSet, hash, response))

	got, replayed, err := m.Replay(sess, domain.PhasePreferencesSet, hash)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.JSONEq(t, string(response), string(got))
}

func TestReplay_DifferentRequestOnConsumedPhase(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess := walkTo(t, m, domain.PhasePreferencesSet)

	require.NoError(t, m.RecordOutcome(ctx, sess, domain.PhasePreferencesSet,
		HashRequest([]byte(`{"Language":"en"}`)), json.RawMessage(`{}`)))

	_, _, err := m.Replay(sess, domain.PhasePreferencesSet, HashRequest([]byte(`{"Language":"es"}`)))
	require.ErrorIs(t, err, domain.ErrSequence)
}

func TestReplay_UnconsumedPhasePassesThrough(t *testing.T) {
	m, _ := setupManager(t)

	sess := walkTo(t, m, domain.PhaseLoginOK)
	_, replayed, err := m.Replay(sess, domain.PhasePreferencesSet, HashRequest([]byte(`{}`)))
	require.NoError(t, err)
	assert.False(t, replayed)
}
