package intent

import (
	"regexp"
	"strings"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

var amountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d{1,2})?)`)

// ParseUtterance extracts an operation and whatever slots the free-text
// message pins down. Keyword matching is deliberately simple; anything it
// cannot resolve stays missing and is asked for via clarification questions.
func ParseUtterance(text string, accounts []domain.Account) (domain.Operation, map[string]string, bool) {
	lower := strings.ToLower(text)

	var op domain.Operation
	switch {
	case strings.Contains(lower, "withdraw"):
		op = domain.OperationWithdraw
	case strings.Contains(lower, "deposit"):
		op = domain.OperationDeposit
	case strings.Contains(lower, "transfer"):
		op = domain.OperationTransfer
	case strings.Contains(lower, "balance"), strings.Contains(lower, "how much"):
		op = domain.OperationBalanceInquiry
	case strings.Contains(lower, "pay"):
		op = domain.OperationPayment
	default:
		return "", nil, false
	}

	answers := make(map[string]string)

	if m := amountPattern.FindStringSubmatch(text); m != nil && op != domain.OperationBalanceInquiry {
		answers[FieldAmount] = m[1]
	}

	checking := accountOfType(accounts, domain.AccountTypeChecking)
	savings := accountOfType(accounts, domain.AccountTypeSavings)
	mentionsChecking := strings.Contains(lower, "checking")
	mentionsSavings := strings.Contains(lower, "savings")

	switch op {
	case domain.OperationWithdraw:
		if src := pickAccount(mentionsChecking, mentionsSavings, checking, savings); src != nil {
			answers[FieldFromAccount] = src.ID.String()
		} else if checking != nil {
			answers[FieldFromAccount] = checking.ID.String()
		}
	case domain.OperationDeposit:
		if dst := pickAccount(mentionsChecking, mentionsSavings, checking, savings); dst != nil {
			answers[FieldToAccount] = dst.ID.String()
		} else if len(accounts) > 0 {
			answers[FieldToAccount] = accounts[0].ID.String()
		}
	case domain.OperationTransfer, domain.OperationPayment:
		// "from X to Y" when both types are named, otherwise the customary
		// checking -> savings direction.
		if checking != nil && savings != nil {
			if mentionsSavings && !mentionsChecking {
				answers[FieldFromAccount] = savings.ID.String()
				answers[FieldToAccount] = checking.ID.String()
			} else {
				answers[FieldFromAccount] = checking.ID.String()
				answers[FieldToAccount] = savings.ID.String()
			}
		}
	case domain.OperationBalanceInquiry:
		if acct := pickAccount(mentionsChecking, mentionsSavings, checking, savings); acct != nil {
			answers[FieldAccount] = acct.ID.String()
		} else if len(accounts) == 1 {
			answers[FieldAccount] = accounts[0].ID.String()
		}
	}

	return op, answers, true
}

func accountOfType(accounts []domain.Account, t domain.AccountType) *domain.Account {
	for i := range accounts {
		if accounts[i].Type == t {
			return &accounts[i]
		}
	}
	return nil
}

func pickAccount(mentionsChecking, mentionsSavings bool, checking, savings *domain.Account) *domain.Account {
	switch {
	case mentionsChecking:
		return checking
	case mentionsSavings:
		return savings
	default:
		return nil
	}
}
