package taskname

const (
	// Ads tasks
	AdCompleted = "ads:completed"

	// Referral tasks
	ReferralPayout = "referral:payout"

	// Wallet tasks
	WalletSweepPending = "wallet:sweep:pending"
)

// Queues served by the worker, with their asynq priority weights.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
