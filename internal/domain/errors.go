package domain

import "errors"

var (
	// ErrNotFound is returned when an agent id is unknown to the registry
	ErrNotFound = errors.New("agent not found")

	// ErrUnauthorized is returned when the caller is not the required owner or admin
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrInvalidArgument is returned for malformed inputs such as zero uses or a zero price
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotRentable is returned when purchasing rental on an agent whose rentable flag is off
	ErrNotRentable = errors.New("agent is not rentable")

	// ErrNotForSale is returned when purchasing an agent that is not listed
	ErrNotForSale = errors.New("agent is not for sale")

	// ErrInsufficientPayment is returned when the submitted payment is below the computed cost
	ErrInsufficientPayment = errors.New("payment below cost")

	// ErrNoRentalBalance is returned when consuming a use without rental entitlement
	ErrNoRentalBalance = errors.New("no rental balance")

	// ErrNoPrepaidBalance is returned when consuming in prepaid mode without prepaid credits
	ErrNoPrepaidBalance = errors.New("no prepaid inference balance")

	// ErrSelfPurchase is returned when the buyer already owns the agent
	ErrSelfPurchase = errors.New("buyer already owns agent")

	// ErrReentrancyBlocked is returned when a value-transferring operation is
	// entered while another one is still settling
	ErrReentrancyBlocked = errors.New("reentrant call blocked")

	// ErrNothingToWithdraw is returned when the accrued fee balance is zero
	ErrNothingToWithdraw = errors.New("nothing to withdraw")

	// ErrDailyLimitExceeded is returned when a non-owner exceeds the agent's
	// per-day usage cap
	ErrDailyLimitExceeded = errors.New("daily usage limit exceeded")

	// ErrEventBacklog is logged when the recorder queue is full and an event
	// had to be dropped
	ErrEventBacklog = errors.New("event backlog full")
)
