package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Venue adapter error codes (§7 error taxonomy of the arbitrage engine)
const (
	// AuthError: credential rejected by venue.
	CodeAuthError Code = "AUTH_ERROR"

	// InsufficientBalance: venue rejects an order for lack of funds.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// InvalidParams: malformed order or unknown symbol/category.
	CodeInvalidParams Code = "INVALID_PARAMS"

	// RateLimited: venue throttling (HTTP 429/418 or a venue throttle code) or a failed
	// local rate-limiter wait; adapters return it without retrying.
	CodeRateLimited Code = "RATE_LIMITED"

	// TransportError: network failure or timeout talking to a venue.
	CodeTransportError Code = "TRANSPORT_ERROR"

	// StreamError: the market-data WebSocket dropped.
	CodeStreamError Code = "STREAM_ERROR"

	// ValidationError: a Pair Registry or TWAP Plan invariant was violated.
	CodeRegistryValidationError Code = "REGISTRY_VALIDATION_ERROR"

	// StaleQuote: a quote older than maxStaleness was read by the detector.
	CodeStaleQuote Code = "STALE_QUOTE"

	// NotFoundError: referenced pair/plan/symbol is unknown.
	CodeVenueNotFound Code = "VENUE_NOT_FOUND"
	CodePairNotFound   Code = "PAIR_NOT_FOUND"
	CodePlanNotFound   Code = "PLAN_NOT_FOUND"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"

	// Persistence errors
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeStoreConflict    Code = "STORE_CONFLICT"
)
