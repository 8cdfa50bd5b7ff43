package wallet

import "fogsly/pkg/errutil"

var (
	ErrInvalidAmount       = errutil.New(errutil.StatusValidationFailed, "amount must be positive with at most 4 decimal places")
	ErrInvalidAddress      = errutil.New(errutil.StatusValidationFailed, "invalid wallet address")
	ErrNoteTooLong         = errutil.New(errutil.StatusValidationFailed, "note must be at most 280 characters")
	ErrSelfTransfer        = errutil.New(errutil.StatusUnprocessableEntity, "cannot transfer to your own wallet")
	ErrInsufficientBalance = errutil.New(errutil.StatusUnprocessableEntity, "insufficient balance")
	ErrWalletNotFound      = errutil.New(errutil.StatusNotFound, "wallet not found")
	ErrRecipientNotFound   = errutil.New(errutil.StatusNotFound, "recipient wallet not found")
	ErrTransferNotFound    = errutil.New(errutil.StatusNotFound, "transfer not found")
	ErrTransferNotPending  = errutil.New(errutil.StatusConflict, "transfer is not pending")
	ErrTransfersDisabled   = errutil.New(errutil.StatusForbidden, "transfers are currently disabled")
	ErrIdempotencyConflict = errutil.New(errutil.StatusConflict, "idempotency key already used for a different transfer")
)
