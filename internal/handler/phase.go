package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/executor"
	"github.com/conversant-bank/atm-backend/internal/session"
	"github.com/conversant-bank/atm-backend/internal/store"
)

// enabledTransactions is the fixed menu advertised to the terminal.
var enabledTransactions = []string{
	"WITHDRAW", "DEPOSIT", "TRANSFER", "BALANCE_INQUIRY",
	"PAYMENT", "BILL_PAYMENT", "PIN_CHANGE",
}

// PhaseHandler serves the five ordered host-protocol endpoints. The wire
// schema mirrors the terminal's PascalCase field naming; everything behind it
// is the session manager and the executor.
type PhaseHandler struct {
	sessions       *session.Manager
	exec           *executor.Executor
	store          store.Store
	fastCashAmount decimal.Decimal
}

func NewPhaseHandler(sessions *session.Manager, exec *executor.Executor, st store.Store, fastCashAmount decimal.Decimal) *PhaseHandler {
	return &PhaseHandler{
		sessions:       sessions,
		exec:           exec,
		store:          st,
		fastCashAmount: fastCashAmount,
	}
}

type ConsumerIdentificationData struct {
	Track2         string   `json:"Track2"`
	EMVTags        []string `json:"EMVTags"`
	ManualDataType string   `json:"ManualDataType"`
}

type LoginRequest struct {
	ClientId                   string                     `json:"ClientId"`
	ClientRequestNumber        string                     `json:"ClientRequestNumber"`
	ClientRequestTime          string                     `json:"ClientRequestTime"`
	ClientUniqueHardwareId     string                     `json:"ClientUniqueHardwareId"`
	ConsumerIdentificationData ConsumerIdentificationData `json:"ConsumerIdentificationData"`
}

type CardProductProperties struct {
	MinPinLength   int     `json:"MinPinLength"`
	MaxPinLength   int     `json:"MaxPinLength"`
	FastSupported  bool    `json:"FastSupported"`
	FastCashAmount float64 `json:"FastCashAmount"`
}

type LoginResponse struct {
	ResponseCode                    string                `json:"ResponseCode"`
	EnabledTransactions             []string              `json:"EnabledTransactions"`
	ConsumerGroup                   string                `json:"ConsumerGroup"`
	ExtendedTransactionResponseCode string                `json:"ExtendedTransactionResponseCode"`
	CardDataElementEntitlements     []string              `json:"CardDataElementEntitlements"`
	CardProductProperties           CardProductProperties `json:"CardProductProperties"`
	TransactionsSupported           []string              `json:"TransactionsSupported"`
	JwtToken                        string                `json:"JwtToken"`
}

// Login opens a session from swiped track data and hands back the bearer
// token every later phase must carry.
func (h *PhaseHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.ConsumerIdentificationData.Track2 == "" {
		RespondValidationError(w, []FieldError{{Field: "ConsumerIdentificationData.Track2", Message: "required"}})
		return
	}

	res, err := h.sessions.Login(r.Context(), req.ConsumerIdentificationData.Track2)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, LoginResponse{
		ResponseCode:                    string(domain.CodeApproved),
		EnabledTransactions:             enabledTransactions,
		ConsumerGroup:                   "DEFAULT",
		ExtendedTransactionResponseCode: "000",
		CardDataElementEntitlements:     []string{},
		CardProductProperties: CardProductProperties{
			MinPinLength:   4,
			MaxPinLength:   6,
			FastSupported:  true,
			FastCashAmount: h.fastCashAmount.InexactFloat64(),
		},
		TransactionsSupported: enabledTransactions,
		JwtToken:              res.Token,
	})
}

type PreferencesData struct {
	Language           string `json:"Language"`
	EmailID            string `json:"EmailID"`
	ReceiptPreference  string `json:"ReceiptPreference"`
	FastCashPreference bool   `json:"FastCashPreference"`
}

type PreferencesRequest struct {
	ClientId               string          `json:"ClientId"`
	ClientRequestNumber    string          `json:"ClientRequestNumber"`
	ClientRequestTime      string          `json:"ClientRequestTime"`
	ClientUniqueHardwareId string          `json:"ClientUniqueHardwareId"`
	CardPosition           string          `json:"CardPosition"`
	Preferences            PreferencesData `json:"Preferences"`
}

type PreferencesResponse struct {
	AuthorizerResponseCode        string  `json:"AuthorizerResponseCode"`
	AcquirerResponseCode          string  `json:"AcquirerResponseCode"`
	ActionCode                    string  `json:"ActionCode"`
	MessageSequenceNumber         string  `json:"MessageSequenceNumber"`
	CustomerId                    string  `json:"CustomerId"`
	SessionLanguageCode           string  `json:"SessionLanguageCode"`
	EmailAddress                  string  `json:"EmailAddress"`
	ReceiptPreferenceCode         string  `json:"ReceiptPreferenceCode"`
	FastCashTransactionAmount     float64 `json:"FastCashTransactionAmount"`
	FastCashSourceAccountNumber   string  `json:"FastCashSourceAccountNumber"`
	FastCashSourceProductTypeCode string  `json:"FastCashSourceProductTypeCode"`
}

// Preferences records language, receipt, and fast-cash choices. Re-sending
// the identical request replays the stored response.
func (h *PhaseHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var req PreferencesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	hash := session.HashRequest(body)
	if cached, ok, err := h.sessions.Replay(sess, domain.PhasePreferencesSet, hash); err != nil {
		RespondDomainError(w, err)
		return
	} else if ok {
		RespondSuccess(w, http.StatusOK, json.RawMessage(cached))
		return
	}

	prefs := domain.Preferences{
		Language:    req.Preferences.Language,
		Email:       req.Preferences.EmailID,
		ReceiptMode: receiptModeFromWire(req.Preferences.ReceiptPreference),
		FastCash:    req.Preferences.FastCashPreference,
	}
	if err := h.sessions.SetPreferences(r.Context(), sess, prefs); err != nil {
		RespondDomainError(w, err)
		return
	}

	var fastCashSource string
	if prefs.FastCash {
		accounts, err := h.store.AccountsByCustomer(r.Context(), sess.CustomerID)
		if err == nil {
			for _, a := range accounts {
				if a.Type == domain.AccountTypeChecking {
					fastCashSource = a.MaskedNumber
					break
				}
			}
		}
	}

	resp := PreferencesResponse{
		AuthorizerResponseCode:        string(domain.CodeApproved),
		AcquirerResponseCode:          string(domain.CodeApproved),
		ActionCode:                    "000",
		MessageSequenceNumber:         req.ClientRequestNumber,
		CustomerId:                    sess.CustomerID.String(),
		SessionLanguageCode:           prefs.Language,
		EmailAddress:                  prefs.Email,
		ReceiptPreferenceCode:         string(prefs.ReceiptMode),
		FastCashTransactionAmount:     h.fastCashAmount.InexactFloat64(),
		FastCashSourceAccountNumber:   fastCashSource,
		FastCashSourceProductTypeCode: "DDA",
	}
	h.respondAndRecord(w, r, sess, domain.PhasePreferencesSet, hash, resp)
}

type EmvAuthorizeRequestData struct {
	Tag57  string `json:"Tag57,omitempty"`
	Tag5FA string `json:"Tag5FA,omitempty"`
}

type PinValidationRequest struct {
	ClientId                string                  `json:"ClientId"`
	ClientRequestNumber     string                  `json:"ClientRequestNumber"`
	EncryptedPinData        string                  `json:"EncryptedPinData"`
	EmvAuthorizeRequestData EmvAuthorizeRequestData `json:"EmvAuthorizeRequestData"`
	Breadcrumb              string                  `json:"Breadcrumb"`
}

type AccountInfo struct {
	AccountNumber string  `json:"AccountNumber"`
	Balance       float64 `json:"Balance"`
	Currency      string  `json:"Currency"`
}

type PinValidationResponse struct {
	AuthorizerResponseCode string        `json:"AuthorizerResponseCode"`
	AcquirerResponseCode   string        `json:"AcquirerResponseCode"`
	ActionCode             string        `json:"ActionCode"`
	MessageSequenceNumber  string        `json:"MessageSequenceNumber"`
	IssuerResponseCode     string        `json:"IssuerResponseCode"`
	PrimaryAccountNumber   string        `json:"PrimaryAccountNumber"`
	CptCardClassCode       string        `json:"CptCardClassCode"`
	TransactionMode        string        `json:"TransactionMode"`
	Breadcrumb             string        `json:"Breadcrumb"`
	ResponseCode           string        `json:"ResponseCode"`
	IntendedWkstState      string        `json:"IntendedWkstState"`
	HostResponseCode       string        `json:"HostResponseCode"`
	Accounts               []AccountInfo `json:"Accounts"`
	SupportedTransactions  []string      `json:"SupportedTransactions"`
}

// PinValidation verifies the PIN block and returns the account overview in
// one exchange. Misses count toward the lockout; the breadcrumb is echoed.
func (h *PhaseHandler) PinValidation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var req PinValidationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	hash := session.HashRequest(body)
	if cached, ok, err := h.sessions.Replay(sess, domain.PhasePinValidated, hash); err != nil {
		RespondDomainError(w, err)
		return
	} else if ok {
		RespondSuccess(w, http.StatusOK, json.RawMessage(cached))
		return
	}

	accounts, err := h.sessions.ValidatePin(r.Context(), sess, req.EncryptedPinData)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	infos := make([]AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, AccountInfo{
			AccountNumber: a.MaskedNumber,
			Balance:       a.Balance.InexactFloat64(),
			Currency:      a.Currency,
		})
	}

	resp := PinValidationResponse{
		AuthorizerResponseCode: string(domain.CodeApproved),
		AcquirerResponseCode:   string(domain.CodeApproved),
		ActionCode:             "000",
		MessageSequenceNumber:  req.ClientRequestNumber,
		IssuerResponseCode:     string(domain.CodeApproved),
		PrimaryAccountNumber:   sess.MaskedPAN,
		CptCardClassCode:       "01",
		TransactionMode:        "ONLINE",
		Breadcrumb:             req.Breadcrumb,
		ResponseCode:           string(domain.CodeApproved),
		IntendedWkstState:      "AccountOverview",
		HostResponseCode:       string(domain.CodeApproved),
		Accounts:               infos,
		SupportedTransactions:  enabledTransactions,
	}
	h.respondAndRecord(w, r, sess, domain.PhasePinValidated, hash, resp)
}

type EmvFinalizeRequestData struct {
	Tags []string `json:"Tags"`
}

type FinalizeRequest struct {
	ClientId                string                 `json:"ClientId"`
	ClientRequestNumber     string                 `json:"ClientRequestNumber"`
	ClientRequestTime       string                 `json:"ClientRequestTime"`
	ClientUniqueHardwareId  string                 `json:"ClientUniqueHardwareId"`
	CardPosition            string                 `json:"CardPosition"`
	ClientTransactionResult string                 `json:"ClientTransactionResult"`
	AccountingState         string                 `json:"AccountingState"`
	CardUpdateState         string                 `json:"CardUpdateState"`
	EmvFinalizeRequestData  EmvFinalizeRequestData `json:"EmvFinalizeRequestData"`
}

type FinalizeResponse struct {
	ExtendedTransactionResponseCode string   `json:"ExtendedTransactionResponseCode"`
	ResponseCode                    string   `json:"ResponseCode"`
	IntendedWkstState               string   `json:"IntendedWkstState"`
	EnabledTransactions             []string `json:"EnabledTransactions"`
}

// Finalize closes the overview handshake. A confirmed result unlocks the
// transaction menu; anything else ends the session.
func (h *PhaseHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var req FinalizeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	hash := session.HashRequest(body)
	if cached, ok, err := h.sessions.Replay(sess, domain.PhaseOverviewFinalized, hash); err != nil {
		RespondDomainError(w, err)
		return
	} else if ok {
		RespondSuccess(w, http.StatusOK, json.RawMessage(cached))
		return
	}

	confirmed := req.ClientTransactionResult == "Confirmed"
	if err := h.sessions.FinalizeOverview(r.Context(), sess, confirmed); err != nil {
		RespondDomainError(w, err)
		return
	}

	state := "TransactionSelection"
	if !confirmed {
		state = "SessionEnd"
	}
	resp := FinalizeResponse{
		ExtendedTransactionResponseCode: "000",
		ResponseCode:                    string(domain.CodeApproved),
		IntendedWkstState:               state,
		EnabledTransactions:             enabledTransactions,
	}
	h.respondAndRecord(w, r, sess, domain.PhaseOverviewFinalized, hash, resp)
}

type SourceAccountData struct {
	Number  string `json:"Number"`
	Type    string `json:"Type"`
	Subtype string `json:"Subtype"`
}

type WithdrawalAuthorizeRequest struct {
	ClientId                string                  `json:"ClientId"`
	ClientRequestNumber     string                  `json:"ClientRequestNumber"`
	ClientRequestTime       string                  `json:"ClientRequestTime"`
	ClientUniqueHardwareId  string                  `json:"ClientUniqueHardwareId"`
	CardPosition            string                  `json:"CardPosition"`
	HostTransactionNumber   string                  `json:"HostTransactionNumber"`
	EncryptedPinData        string                  `json:"EncryptedPinData"`
	EmvAuthorizeRequestData EmvAuthorizeRequestData `json:"EmvAuthorizeRequestData"`
	CardTechnology          string                  `json:"CardTechnology"`
	SourceAccount           SourceAccountData       `json:"SourceAccount"`
	RequestedAmount         float64                 `json:"RequestedAmount"`
	Currency                string                  `json:"Currency"`
}

type DebitedAccountData struct {
	AccountNumber string `json:"AccountNumber"`
	AccountType   string `json:"AccountType"`
	Subtype       string `json:"Subtype"`
}

type WithdrawalDailyLimitsData struct {
	Amount         float64 `json:"Amount"`
	CurrencyCode   string  `json:"CurrencyCode"`
	FractionDigits int     `json:"FractionDigits"`
}

type AccountInformationData struct {
	Balance        float64 `json:"Balance"`
	CurrencyCode   string  `json:"CurrencyCode"`
	FractionDigits int     `json:"FractionDigits"`
}

type WithdrawalAuthorizeResponse struct {
	AuthorizerResponseCode string                    `json:"AuthorizerResponseCode"`
	AcquirerResponseCode   string                    `json:"AcquirerResponseCode"`
	ActionCode             string                    `json:"ActionCode"`
	MessageSequenceNumber  string                    `json:"MessageSequenceNumber"`
	CptCardClassCode       string                    `json:"CptCardClassCode"`
	TransactionMode        string                    `json:"TransactionMode"`
	TransactionAmount      float64                   `json:"TransactionAmount"`
	Currency               string                    `json:"Currency"`
	FractionDigits         int                       `json:"FractionDigits"`
	DebitedAccount         DebitedAccountData        `json:"DebitedAccount"`
	WithdrawalDailyLimits  WithdrawalDailyLimitsData `json:"WithdrawalDailyLimits"`
	ResponseCode           string                    `json:"ResponseCode"`
	EnabledTransactions    []string                  `json:"EnabledTransactions"`
	AccountInformation     AccountInformationData    `json:"AccountInformation"`
	PossibleLimits         []string                  `json:"PossibleLimits"`
}

// WithdrawalAuthorize debits the source account through the executor. The
// session loops back to the transaction menu afterwards, so this endpoint is
// repeatable and not subject to phase replay.
func (h *PhaseHandler) WithdrawalAuthorize(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalAuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	// The PIN was verified during the pin-validation phase; EncryptedPinData
	// is carried on this message but deliberately not re-checked.
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	acct, err := h.accountByNumber(r, sess, req.SourceAccount.Number)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	amount := decimal.NewFromFloat(req.RequestedAmount)
	currency := req.Currency
	if currency == "" {
		currency = acct.Currency
	}

	res, err := h.exec.Execute(r.Context(), executor.Request{
		CustomerID:    sess.CustomerID,
		Operation:     domain.OperationWithdraw,
		FromAccountID: &acct.ID,
		Amount:        amount,
		Currency:      currency,
		ReceiptMode:   sess.Preferences.ReceiptMode,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	var remaining float64
	if res.RemainingLimit != nil {
		remaining = res.RemainingLimit.InexactFloat64()
	}
	RespondSuccess(w, http.StatusOK, WithdrawalAuthorizeResponse{
		AuthorizerResponseCode: string(domain.CodeApproved),
		AcquirerResponseCode:   string(domain.CodeApproved),
		ActionCode:             "000",
		MessageSequenceNumber:  req.ClientRequestNumber,
		CptCardClassCode:       "01",
		TransactionMode:        "ONLINE",
		TransactionAmount:      amount.InexactFloat64(),
		Currency:               currency,
		FractionDigits:         2,
		DebitedAccount: DebitedAccountData{
			AccountNumber: acct.MaskedNumber,
			AccountType:   string(acct.Type),
			Subtype:       "DDA",
		},
		WithdrawalDailyLimits: WithdrawalDailyLimitsData{
			Amount:         remaining,
			CurrencyCode:   currency,
			FractionDigits: 2,
		},
		ResponseCode:        string(domain.CodeApproved),
		EnabledTransactions: enabledTransactions,
		AccountInformation: AccountInformationData{
			Balance:        res.Balances[acct.ID].InexactFloat64(),
			CurrencyCode:   currency,
			FractionDigits: 2,
		},
		PossibleLimits: []string{"DAILY_WITHDRAWAL"},
	})
}

// accountByNumber matches a terminal-supplied account number, full or masked,
// against the session customer's accounts.
func (h *PhaseHandler) accountByNumber(r *http.Request, sess *domain.Session, number string) (*domain.Account, error) {
	accounts, err := h.store.AccountsByCustomer(r.Context(), sess.CustomerID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Number == number || accounts[i].MaskedNumber == number {
			return &accounts[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// respondAndRecord writes the success envelope and snapshots the payload so
// an identical retry replays instead of re-running the phase.
func (h *PhaseHandler) respondAndRecord(w http.ResponseWriter, r *http.Request, sess *domain.Session, phase domain.Phase, hash string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		RespondAppError(w, ErrInternalError, nil)
		return
	}
	if err := h.sessions.RecordOutcome(r.Context(), sess, phase, hash, raw); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, json.RawMessage(raw))
}

func receiptModeFromWire(pref string) domain.ReceiptMode {
	switch pref {
	case "Email", "EMAIL":
		return domain.ReceiptModeEmail
	case "Print", "PRINT", "Paper":
		return domain.ReceiptModePrint
	default:
		return domain.ReceiptModeNone
	}
}
