package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/config"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// walletServer fakes the PostgREST surface the client touches: the accounts
// table and the deduct RPC. The server takes its own lock so concurrent
// client calls hit a consistent ledger.
func walletServer(t *testing.T, balances map[string]float64) *Client {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/wallet_accounts":
			account := r.URL.Query().Get("account_id")
			account = trimEqPrefix(account)
			w.Header().Set("Content-Type", "application/json")
			mu.Lock()
			bal, ok := balances[account]
			mu.Unlock()
			if !ok {
				w.Write([]byte("[]"))
				return
			}
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"account_id": account, "balance": bal},
			})
		case "/rest/v1/rpc/deduct_credits":
			var params struct {
				AccountID string  `json:"p_account_id"`
				Amount    float64 `json:"p_amount"`
			}
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			mu.Lock()
			bal := balances[params.AccountID]
			if bal < params.Amount {
				mu.Unlock()
				json.NewEncoder(w).Encode(map[string]interface{}{"deducted": false, "remaining": bal})
				return
			}
			balances[params.AccountID] = bal - params.Amount
			remaining := balances[params.AccountID]
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{"deducted": true, "remaining": remaining})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{SupabaseURL: srv.URL, SupabaseKey: "test-key"}
	return New(cfg, testLogger())
}

// PostgREST encodes filters as eq.<value>.
func trimEqPrefix(v string) string {
	if len(v) > 3 && v[:3] == "eq." {
		return v[3:]
	}
	return v
}

func TestBalance(t *testing.T) {
	c := walletServer(t, map[string]float64{"acct-1": 80})

	bal, err := c.Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if bal != 80 {
		t.Errorf("balance = %v, want 80", bal)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	c := walletServer(t, map[string]float64{})

	_, err := c.Balance(context.Background(), "ghost")
	var notFound *apperr.AccountNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected AccountNotFoundError, got %v", err)
	}
	if notFound.AccountID != "ghost" {
		t.Errorf("error names account %q", notFound.AccountID)
	}
}

func TestCheckBalance(t *testing.T) {
	c := walletServer(t, map[string]float64{"acct-1": 30})

	if err := c.CheckBalance(context.Background(), "acct-1", 25); err != nil {
		t.Errorf("sufficient balance rejected: %v", err)
	}

	err := c.CheckBalance(context.Background(), "acct-1", 50)
	var funds *apperr.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if funds.Balance != 30 || funds.Required != 50 {
		t.Errorf("error carries balance %v required %v", funds.Balance, funds.Required)
	}

	// The check never mutates the ledger.
	if bal, _ := c.Balance(context.Background(), "acct-1"); bal != 30 {
		t.Errorf("balance changed by CheckBalance: %v", bal)
	}
}

func TestDeduct(t *testing.T) {
	c := walletServer(t, map[string]float64{"acct-1": 100})

	out, err := c.Deduct(context.Background(), "acct-1", 25)
	if err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}
	if !out.Deducted || out.Amount != 25 || out.Remaining != 75 {
		t.Errorf("outcome = %+v", out)
	}
}

// Concurrent renders share one ledger client; every successful RPC must
// report success even when other deductions run at the same time, and the
// charges must add up exactly.
func TestDeductConcurrent(t *testing.T) {
	balances := map[string]float64{"acct-1": 1000}
	c := walletServer(t, balances)

	const renders = 8
	var wg sync.WaitGroup
	errs := make([]error, renders)
	for i := 0; i < renders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := c.Deduct(context.Background(), "acct-1", 25)
			if err != nil {
				errs[i] = err
				return
			}
			if !out.Deducted {
				errs[i] = errors.New("successful rpc reported not deducted")
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("deduction %d failed: %v", i, err)
		}
	}
	if balances["acct-1"] != 1000-renders*25 {
		t.Errorf("final balance %v, want %v", balances["acct-1"], 1000-renders*25)
	}
}

// A balance that dropped between check and deduct surfaces as
// InsufficientFundsError, never a partial charge.
func TestDeductLostRace(t *testing.T) {
	balances := map[string]float64{"acct-1": 10}
	c := walletServer(t, balances)

	_, err := c.Deduct(context.Background(), "acct-1", 25)
	var funds *apperr.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if balances["acct-1"] != 10 {
		t.Errorf("lost race still charged the account: %v", balances["acct-1"])
	}
}
