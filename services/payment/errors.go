package payment

import "fogsly/pkg/errutil"

var (
	ErrInvalidAmount         = errutil.New(errutil.StatusValidationFailed, "amount must be positive with at most 4 decimals")
	ErrInvalidBankAccount    = errutil.New(errutil.StatusValidationFailed, "bank name, account name, account number and currency are required")
	ErrBankAccountNotFound   = errutil.New(errutil.StatusNotFound, "bank account not found")
	ErrBankAccountInactive   = errutil.New(errutil.StatusUnprocessableEntity, "bank account is not accepting payments")
	ErrCurrencyMismatch      = errutil.New(errutil.StatusValidationFailed, "currency does not match the bank account")
	ErrPaymentNotFound       = errutil.New(errutil.StatusNotFound, "payment request not found")
	ErrPaymentNotReviewable  = errutil.New(errutil.StatusConflict, "payment request is already resolved")
	ErrTransactionIDRequired = errutil.New(errutil.StatusValidationFailed, "transaction id is required")
	ErrReasonRequired        = errutil.New(errutil.StatusValidationFailed, "reason is required when rejecting")
)
