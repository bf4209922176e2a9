package token

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-process Ledger used by tests and local development.
// It enforces balance and allowance checks the same way the real token
// service does.
type MemoryLedger struct {
	mu         sync.Mutex
	decimals   int
	spender    string
	balances   map[string]int64
	allowances map[string]int64
}

// NewMemoryLedger creates a ledger with the given decimal scale. The spender
// is the custody account transfers originate from.
func NewMemoryLedger(decimals int, spender string) *MemoryLedger {
	return &MemoryLedger{
		decimals:   decimals,
		spender:    spender,
		balances:   make(map[string]int64),
		allowances: make(map[string]int64),
	}
}

// Mint credits an account, test setup helper.
func (m *MemoryLedger) Mint(account string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

// Approve sets the allowance owner grants to spender.
func (m *MemoryLedger) Approve(owner, spender string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[owner+"|"+spender] = amount
}

func (m *MemoryLedger) Decimals(ctx context.Context) (int, error) {
	return m.decimals, nil
}

func (m *MemoryLedger) BalanceOf(ctx context.Context, account string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

func (m *MemoryLedger) Allowance(ctx context.Context, owner, spender string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[owner+"|"+spender], nil
}

func (m *MemoryLedger) TransferFrom(ctx context.Context, owner, recipient string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := owner + "|" + m.spender
	if m.allowances[key] < amount {
		return fmt.Errorf("allowance %d below %d", m.allowances[key], amount)
	}
	if m.balances[owner] < amount {
		return fmt.Errorf("balance %d below %d", m.balances[owner], amount)
	}
	m.allowances[key] -= amount
	m.balances[owner] -= amount
	m.balances[recipient] += amount
	return nil
}

func (m *MemoryLedger) Transfer(ctx context.Context, recipient string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[m.spender] < amount {
		return fmt.Errorf("balance %d below %d", m.balances[m.spender], amount)
	}
	m.balances[m.spender] -= amount
	m.balances[recipient] += amount
	return nil
}
