package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidCardNumber  = errors.New("invalid card number")
	ErrInvalidPIN         = errors.New("pin must be 4 to 6 digits")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrSameCard           = errors.New("cannot transfer to the same card")
	ErrCardInactive       = errors.New("card is not active")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrCurrencyMismatch   = errors.New("accounts use different currencies")
	ErrCardHasBalance     = errors.New("cannot delete card with positive balance")
	ErrCardExists         = errors.New("card number already exists")
	ErrProvisioningFailed = errors.New("could not provision a unique card number")
	ErrCrypto             = errors.New("card cipher failure")
	ErrVersionConflict    = errors.New("optimistic lock conflict")
	ErrUsernameTaken      = errors.New("username already exists")
)
