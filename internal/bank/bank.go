// Package bank keeps the native-currency account book backing the ledger's
// settlement: one balance per party, in the smallest currency unit.
package bank

import (
	"errors"
	"sync"

	"github.com/feral-file/agent-ledger/internal/domain"
)

// ErrInsufficientFunds is returned when a debit exceeds the account balance
var ErrInsufficientFunds = errors.New("insufficient funds")

// AccountBook is an in-memory account book. Credits cannot fail; debits fail
// when the balance does not cover the amount. Safe for concurrent use.
type AccountBook struct {
	mu       sync.RWMutex
	balances map[domain.Address]uint64
}

// NewAccountBook creates an empty account book
func NewAccountBook() *AccountBook {
	return &AccountBook{
		balances: make(map[domain.Address]uint64),
	}
}

// Deposit adds funds to an account, creating it if needed
func (b *AccountBook) Deposit(to domain.Address, amount uint64) {
	if amount == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[to] += amount
}

// Debit removes funds from an account. The account entry is never created by
// a debit; a missing account simply has balance zero.
func (b *AccountBook) Debit(from domain.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return ErrInsufficientFunds
	}
	b.balances[from] -= amount
	return nil
}

// Pay credits funds to an account. Payouts are credits and cannot fail, which
// lets the ledger commit state before moving funds out.
func (b *AccountBook) Pay(to domain.Address, amount uint64) {
	b.Deposit(to, amount)
}

// BalanceOf returns the current balance of an account, zero for unknown
// accounts
func (b *AccountBook) BalanceOf(addr domain.Address) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[addr]
}
