package dto

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/usecase"
)

func TestAccountFromDomain(t *testing.T) {
	now := time.Now()
	account := &domain.Account{
		ID:        "acc-1",
		Balance:   decimal.RequireFromString("123.4"),
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := AccountFromDomain(account)
	if resp.ID != account.ID || resp.Balance != "123.40" {
		t.Fatalf("unexpected account response: %+v", resp)
	}

	list := AccountsFromDomain([]*domain.Account{account})
	if len(list) != 1 || list[0].ID != account.ID {
		t.Fatalf("AccountsFromDomain returned %+v", list)
	}
}

func TestBalanceFromView(t *testing.T) {
	resp := BalanceFromView(&usecase.BalanceView{AccountID: "acc-1", Balance: decimal.NewFromInt(150)})
	if resp.ID != "acc-1" || resp.Balance != "150.00" {
		t.Fatalf("unexpected balance response: %+v", resp)
	}
}

func TestHistoryFromDomain(t *testing.T) {
	records := []*domain.HistoryRecord{
		{ID: 2, AccountID: "acc-1", Action: domain.ActionDebit, Amount: decimal.NewFromInt(50)},
		{ID: 1, AccountID: "acc-1", Action: domain.ActionCredit, Amount: decimal.NewFromInt(200)},
	}

	resp := HistoryFromDomain(records)
	if len(resp) != 2 || resp[0].Action != "debit" || resp[0].Amount != "50.00" || resp[1].ID != 1 {
		t.Fatalf("unexpected history response: %+v", resp)
	}
}

func TestReconciliationFromResult(t *testing.T) {
	resp := ReconciliationFromResult(&usecase.ReconciliationResult{
		AccountID:         "acc-1",
		RecordedBalance:   decimal.NewFromInt(95),
		CalculatedBalance: decimal.NewFromInt(80),
		Difference:        decimal.NewFromInt(15),
	})

	if resp.Difference != "15.00" || resp.IsReconciled {
		t.Fatalf("unexpected reconciliation response: %+v", resp)
	}
}
