package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Venue adapter errors
	CodeAuthError:           "Venue rejected the supplied credentials",
	CodeInsufficientBalance: "Venue reports insufficient balance for this order",
	CodeInvalidParams:       "Malformed order or unknown symbol/category",
	CodeRateLimited:         "Venue is throttling requests",
	CodeTransportError:      "Network error or timeout talking to venue",
	CodeStreamError:         "Market data stream dropped",
	CodeRegistryValidationError: "Monitoring pair or TWAP plan violates an invariant",
	CodeStaleQuote:          "Quote is older than the configured staleness bound",
	CodeVenueNotFound:       "Unknown venue",
	CodePairNotFound:        "Unknown monitoring pair",
	CodePlanNotFound:        "Unknown TWAP plan",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",

	// Persistence errors
	CodeStoreUnavailable: "Durable store is unreachable",
	CodeStoreConflict:    "Durable store rejected a conflicting write",
}
