package ledger

import (
	"github.com/feral-file/agent-ledger/internal/domain"
)

// ListForSale puts an agent up for outright sale at the given price,
// overwriting any prior listing. Owner only; price must be positive.
func (l *Ledger) ListForSale(caller domain.Address, id uint64, price uint64) (domain.LedgerEvent, error) {
	if price == 0 {
		return domain.LedgerEvent{}, domain.ErrInvalidArgument
	}

	l.mu.Lock()
	s, err := l.agentLocked(id)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if s.owner != caller {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrUnauthorized
	}
	s.listed = true
	s.price = price
	ev := l.newEventLocked(domain.EventTypeListed, id, caller)
	ev.Price = price
	l.mu.Unlock()

	l.sink.Emit(ev)
	return ev, nil
}

// Delist takes an agent off sale. Owner only. Delisting an agent that is not
// listed succeeds without effect.
func (l *Ledger) Delist(caller domain.Address, id uint64) (domain.LedgerEvent, error) {
	l.mu.Lock()
	s, err := l.agentLocked(id)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if s.owner != caller {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrUnauthorized
	}
	s.listed = false
	s.price = 0
	ev := l.newEventLocked(domain.EventTypeDelisted, id, caller)
	l.mu.Unlock()

	l.sink.Emit(ev)
	return ev, nil
}

// Purchase buys a listed agent outright. Ownership moves to the caller and
// the listing clears in the same step; the previous owner is paid exactly the
// listed price and any overpayment returns to the caller.
func (l *Ledger) Purchase(caller domain.Address, id uint64, payment uint64) (domain.LedgerEvent, error) {
	if err := l.enterSettlement(); err != nil {
		return domain.LedgerEvent{}, err
	}
	defer l.exitSettlement()

	l.mu.Lock()
	s, err := l.agentLocked(id)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if !s.listed {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrNotForSale
	}
	if s.owner == caller {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrSelfPurchase
	}
	price := s.price
	if payment < price {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrInsufficientPayment
	}
	if err := l.bank.Debit(caller, payment); err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}

	seller := s.owner
	transferOwnershipLocked(s, caller)
	refund := payment - price

	ev := l.newEventLocked(domain.EventTypeSold, id, caller)
	ev.Counterparty = &seller
	ev.Price = price
	ev.Amount = price
	ev.Refund = refund
	l.mu.Unlock()

	l.sink.Emit(ev)
	l.bank.Pay(seller, price)
	if refund > 0 {
		l.bank.Pay(caller, refund)
	}
	return ev, nil
}

// WithdrawFees pays the full accrued fee balance out to the registry admin.
// Admin only; fails when nothing has accrued.
func (l *Ledger) WithdrawFees(caller domain.Address) (domain.LedgerEvent, error) {
	if err := l.enterSettlement(); err != nil {
		return domain.LedgerEvent{}, err
	}
	defer l.exitSettlement()

	l.mu.Lock()
	if caller != l.admin {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrUnauthorized
	}
	if l.accrued == 0 {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrNothingToWithdraw
	}
	amount := l.accrued
	l.accrued = 0

	ev := l.newEventLocked(domain.EventTypeFeesWithdrawn, 0, caller)
	ev.Amount = amount
	l.mu.Unlock()

	l.sink.Emit(ev)
	l.bank.Pay(caller, amount)
	return ev, nil
}
