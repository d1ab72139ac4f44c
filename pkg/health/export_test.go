package health

// Re-exported for the external health_test package.
const (
	StatusHealthy   = statusHealthy
	StatusUnhealthy = statusUnhealthy
)
