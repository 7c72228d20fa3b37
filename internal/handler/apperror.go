package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrForbidden          = &AppError{http.StatusForbidden, "ACCESS_DENIED", "You do not have access to this resource"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidCardNumber  = &AppError{http.StatusBadRequest, "INVALID_CARD_NUMBER", "Card number is not valid"}
	ErrInvalidPIN         = &AppError{http.StatusBadRequest, "INVALID_PIN", "PIN must be 4 to 6 digits"}
	ErrInvalidAmount      = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrSameCard           = &AppError{http.StatusUnprocessableEntity, "SAME_CARD", "Cannot transfer to the same card"}
	ErrCardInactive       = &AppError{http.StatusUnprocessableEntity, "CARD_INACTIVE", "Card is not active"}
	ErrInsufficientFunds  = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrCurrencyMismatch   = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Accounts use different currencies"}
	ErrCardHasBalance     = &AppError{http.StatusUnprocessableEntity, "CARD_HAS_BALANCE", "Card balance must be zero before deletion"}
	ErrUsernameTaken      = &AppError{http.StatusConflict, "USERNAME_TAKEN", "Username already exists"}
	ErrVersionConflict    = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrProvisioningFailed = &AppError{http.StatusInternalServerError, "PROVISIONING_FAILED", "Could not issue a card, please retry"}
)
