package ledger

import (
	"time"

	"github.com/feral-file/agent-ledger/internal/domain"
)

// PurchaseRental buys `uses` rental credits for the caller at the agent's
// rental price per use. The payment must cover rentalPricePerUse*uses; any
// excess is returned to the caller within the operation.
func (l *Ledger) PurchaseRental(caller domain.Address, id uint64, uses uint64, payment uint64) (domain.LedgerEvent, error) {
	return l.purchaseRental(caller, id, uses, payment, false)
}

// PurchaseRentalWithInference buys `uses` rental credits plus the same number
// of prepaid inference credits, at uses*(rentalPricePerUse+usageCost).
func (l *Ledger) PurchaseRentalWithInference(caller domain.Address, id uint64, uses uint64, payment uint64) (domain.LedgerEvent, error) {
	return l.purchaseRental(caller, id, uses, payment, true)
}

func (l *Ledger) purchaseRental(caller domain.Address, id uint64, uses uint64, payment uint64, withInference bool) (domain.LedgerEvent, error) {
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
	if !s.agent.Metadata.Rentable {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrNotRentable
	}
	if uses == 0 {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrInvalidArgument
	}

	perUse := s.agent.Metadata.RentalPricePerUse
	if withInference {
		perUse, err = addChecked(perUse, s.agent.Metadata.UsageCost)
		if err != nil {
			l.mu.Unlock()
			return domain.LedgerEvent{}, err
		}
	}
	cost, err := mulChecked(perUse, uses)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if payment < cost {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrInsufficientPayment
	}
	newRental, err := addChecked(s.rentals[caller], uses)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	newPrepaid := s.prepaid[caller]
	if withInference {
		// prepaid can exceed rentals after pay-per-use consumption, so it
		// needs its own overflow check
		newPrepaid, err = addChecked(newPrepaid, uses)
		if err != nil {
			l.mu.Unlock()
			return domain.LedgerEvent{}, err
		}
	}
	if err := l.bank.Debit(caller, payment); err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}

	s.rentals[caller] = newRental
	if withInference {
		s.prepaid[caller] = newPrepaid
	}
	l.accrued += cost
	refund := payment - cost

	ev := l.newEventLocked(domain.EventTypeRented, id, caller)
	ev.Uses = uses
	ev.Amount = cost
	ev.Refund = refund
	ev.Prepaid = withInference
	ev.RentalBalance = s.rentals[caller]
	ev.PrepaidBalance = s.prepaid[caller]
	l.mu.Unlock()

	l.sink.Emit(ev)
	if refund > 0 {
		l.bank.Pay(caller, refund)
	}
	return ev, nil
}

// ConsumeUse consumes one use of an agent on behalf of the caller.
//
// The current owner always consumes free and unmetered; no balance or payment
// is touched. Any other caller needs a rental balance and, when the agent
// caps daily usage, headroom in the current UTC day. In pay-per-use mode the
// payment must cover the agent's usage cost, with excess refunded; in prepaid
// mode one prepaid inference credit is consumed instead and no payment is
// required.
func (l *Ledger) ConsumeUse(caller domain.Address, id uint64, payment uint64, mode domain.ConsumeMode) (domain.LedgerEvent, error) {
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

	if s.owner == caller {
		ev := l.newEventLocked(domain.EventTypeUsed, id, caller)
		ev.Uses = 1
		ev.ByOwner = true
		l.mu.Unlock()

		l.sink.Emit(ev)
		return ev, nil
	}

	if !mode.Valid() {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrInvalidArgument
	}
	if s.rentals[caller] == 0 {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrNoRentalBalance
	}

	now := l.clock.Now().UTC()
	inWindow := s.usesToday[caller]
	if !sameUTCDay(s.lastUse[caller], now) {
		inWindow = 0
	}
	if cap := s.agent.Metadata.MaxUsagesPerDay; cap > 0 && inWindow >= cap {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrDailyLimitExceeded
	}

	var cost uint64
	switch mode {
	case domain.ConsumeModePayPerUse:
		cost = s.agent.Metadata.UsageCost
		if payment < cost {
			l.mu.Unlock()
			return domain.LedgerEvent{}, domain.ErrInsufficientPayment
		}
	case domain.ConsumeModePrepaid:
		if s.prepaid[caller] == 0 {
			l.mu.Unlock()
			return domain.LedgerEvent{}, domain.ErrNoPrepaidBalance
		}
	}
	if err := l.bank.Debit(caller, payment); err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}

	s.rentals[caller]--
	if mode == domain.ConsumeModePrepaid {
		s.prepaid[caller]--
	}
	s.lastUse[caller] = now
	s.usesToday[caller] = inWindow + 1
	l.accrued += cost
	refund := payment - cost

	ev := l.newEventLocked(domain.EventTypeUsed, id, caller)
	ev.Uses = 1
	ev.Amount = cost
	ev.Refund = refund
	ev.Prepaid = mode == domain.ConsumeModePrepaid
	ev.RentalBalance = s.rentals[caller]
	ev.PrepaidBalance = s.prepaid[caller]
	l.mu.Unlock()

	l.sink.Emit(ev)
	if refund > 0 {
		l.bank.Pay(caller, refund)
	}
	return ev, nil
}

// sameUTCDay reports whether both instants fall in the same UTC calendar day
func sameUTCDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
