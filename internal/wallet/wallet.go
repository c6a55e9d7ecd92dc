// Package wallet is the ledger-service client. The pipeline performs a
// pre-flight balance check before any expensive work and an atomic
// "deduct if balance >= cost" after a successful render; atomicity lives in
// the database function, not here.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"

	"adreel/internal/apperr"
	"adreel/internal/config"
	"adreel/internal/models"
)

// Client talks to the wallet tables and RPCs over PostgREST. One Client is
// shared across concurrent renders; mu serializes the RPC surface because
// postgrest-go reports RPC failures through the shared ClientError field.
type Client struct {
	db  *postgrest.Client
	mu  sync.Mutex
	log *logrus.Logger
}

// New builds the ledger client.
func New(cfg *config.Config, log *logrus.Logger) *Client {
	headers := map[string]string{
		"apikey":        cfg.SupabaseKey,
		"Authorization": "Bearer " + cfg.SupabaseKey,
	}
	return &Client{
		db:  postgrest.NewClient(cfg.SupabaseURL+"/rest/v1", "public", headers),
		log: log,
	}
}

type accountRow struct {
	AccountID string  `json:"account_id"`
	Balance   float64 `json:"balance"`
}

type deductResult struct {
	Deducted  bool    `json:"deducted"`
	Remaining float64 `json:"remaining"`
}

// Balance returns the current balance for an account.
func (c *Client) Balance(ctx context.Context, accountID string) (float64, error) {
	data, _, err := c.db.From("wallet_accounts").
		Select("account_id,balance", "", false).
		Eq("account_id", accountID).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("fetch wallet account %s: %w", accountID, err)
	}

	var rows []accountRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("parse wallet account %s: %w", accountID, err)
	}
	if len(rows) == 0 {
		return 0, &apperr.AccountNotFoundError{AccountID: accountID}
	}
	return rows[0].Balance, nil
}

// CheckBalance is the pre-flight gate: it fails when the account is unknown
// or the balance cannot cover cost. It never mutates the ledger.
func (c *Client) CheckBalance(ctx context.Context, accountID string, cost float64) error {
	balance, err := c.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	if balance < cost {
		return &apperr.InsufficientFundsError{AccountID: accountID, Balance: balance, Required: cost}
	}
	return nil
}

// Deduct runs the atomic deduct-if-sufficient RPC. A lost race (balance
// dropped below cost between check and deduct) surfaces as
// InsufficientFundsError, never as a partial charge.
func (c *Client) Deduct(ctx context.Context, accountID string, amount float64) (models.DeductionOutcome, error) {
	// Rpc writes ClientError on the shared client and never clears it on
	// success, so the call and the read must happen atomically: without the
	// lock a successful deduction can observe another render's error and
	// report failure after the database already charged the account.
	c.mu.Lock()
	c.db.ClientError = nil
	body := c.db.Rpc("deduct_credits", "", map[string]interface{}{
		"p_account_id": accountID,
		"p_amount":     amount,
	})
	rpcErr := c.db.ClientError
	c.mu.Unlock()
	if rpcErr != nil {
		return models.DeductionOutcome{}, fmt.Errorf("deduct rpc for %s: %w", accountID, rpcErr)
	}

	var res deductResult
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return models.DeductionOutcome{}, fmt.Errorf("parse deduct result for %s: %w", accountID, err)
	}
	if !res.Deducted {
		return models.DeductionOutcome{}, &apperr.InsufficientFundsError{
			AccountID: accountID,
			Balance:   res.Remaining,
			Required:  amount,
		}
	}

	c.log.WithFields(logrus.Fields{"account": accountID, "amount": amount, "remaining": res.Remaining}).Info("wallet deducted")
	return models.DeductionOutcome{Deducted: true, Amount: amount, Remaining: res.Remaining}, nil
}
