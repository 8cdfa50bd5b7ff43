package ads

import "fogsly/pkg/errutil"

var (
	ErrAdNotFound         = errutil.New(errutil.StatusNotFound, "ad not found")
	ErrAdNotAvailable     = errutil.New(errutil.StatusUnprocessableEntity, "ad is not available")
	ErrAdAlreadyCompleted = errutil.New(errutil.StatusConflict, "ad already completed")
	ErrAdRewardsPaused    = errutil.New(errutil.StatusForbidden, "ad rewards are currently paused")
	ErrInteractionMissing = errutil.New(errutil.StatusNotFound, "interaction not found")
	ErrInvalidAd          = errutil.New(errutil.StatusValidationFailed, "invalid ad")
	ErrInvalidMediaKind   = errutil.New(errutil.StatusValidationFailed, "media kind must be video or preview")
)
