package models

import (
	"github.com/google/uuid"
)

// CreateAccountRequest opens a new account. The id is optional; the server
// generates one when it is omitted.
type CreateAccountRequest struct {
	ID *uuid.UUID `json:"id" binding:"omitempty"`
}

// AccountResponse mirrors the account balance snapshot
type AccountResponse struct {
	ID            uuid.UUID `json:"id"`
	Balance       int64     `json:"balance"`
	LockedBalance int64     `json:"locked_balance"`
}

// AddFundsRequest credits an account
type AddFundsRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// WithdrawalRequest asks to move funds to an external address
type WithdrawalRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

// WithdrawalResponse mirrors one ledger entry
type WithdrawalResponse struct {
	ID      uuid.UUID `json:"withdrawal_id"`
	Address string    `json:"address"`
	Amount  int64     `json:"amount"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
}

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Message string `json:"message"`
}
