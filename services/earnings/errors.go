package earnings

import "fogsly/pkg/errutil"

var (
	ErrInvalidAmount          = errutil.New(errutil.StatusValidationFailed, "amount must be positive with at most 4 decimal places")
	ErrUnknownBucket          = errutil.New(errutil.StatusValidationFailed, "unknown earnings bucket")
	ErrMissingReference       = errutil.New(errutil.StatusValidationFailed, "reference_id is required")
	ErrInsufficientBalance    = errutil.New(errutil.StatusUnprocessableEntity, "insufficient balance")
	ErrWithdrawalsDisabled    = errutil.New(errutil.StatusForbidden, "withdrawals are currently disabled")
	ErrBelowMinimumWithdrawal = errutil.New(errutil.StatusUnprocessableEntity, "amount is below the minimum withdrawal")
	ErrWithdrawalNotFound     = errutil.New(errutil.StatusNotFound, "withdrawal request not found")
	ErrWithdrawalNotPending   = errutil.New(errutil.StatusConflict, "withdrawal request is not pending")
	ErrReferenceConflict      = errutil.New(errutil.StatusConflict, "reference_id already used for a different transfer")
)
