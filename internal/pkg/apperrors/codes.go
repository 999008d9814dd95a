package apperrors

// Error codes grouped by concern.
const (
	// Caller input
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"

	// Resources
	CodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	CodePlanNotFound         ErrorCode = "PLAN_NOT_FOUND"
	CodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"

	// Webhook auth
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// Upstream billing provider
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
	CodeProviderRetry ErrorCode = "PROVIDER_RETRY"

	// Invariant violations
	CodeConsistencyError ErrorCode = "CONSISTENCY_ERROR"

	// System
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError ErrorCode = "DATABASE_ERROR"
)
