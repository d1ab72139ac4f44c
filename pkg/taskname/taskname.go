package taskname

const (
	// Earnings tasks
	EarningsView      = "earnings:view"
	EarningsReconcile = "earnings:reconcile"

	// Fraud tasks
	FraudIPLog = "fraud:ip_log"
)
