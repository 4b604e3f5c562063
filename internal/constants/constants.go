package constants

type contextKey string

const (
	SessionCookieName = "session_id"
	CSRFCookieName    = "csrf_token"
	CSRFHeaderName    = "X-CSRF-Token"
)

const (
	MaxPendingProblems = 20
)

const (
	RouteHealthz       = "/healthz"
	RouteSession       = "/api/session"
	RouteLock          = "/api/locks/:action"
	RouteLockChallenge = "/api/locks/:action/challenge"
	RouteMathProblem   = "/api/math/problem"
	RouteMathAnswer    = "/api/math/answer"
	RouteMathStats     = "/api/math/stats"
	RouteProgressReset = "/api/progress/reset"
	RouteWallet        = "/api/wallet"
	RouteWalletSpend   = "/api/wallet/spend"
	RouteGameComplete  = "/api/games/:game/complete"
)

const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidDifficulty = "invalid_difficulty"
	ErrorCodeUnknownProblem    = "unknown_problem"
	ErrorCodeNotLocked         = "not_locked"
	ErrorCodeInsufficientCoins = "insufficient_coins"
	ErrorCodeStoreUnavailable  = "store_unavailable"
	ErrorCodeRateLimited       = "rate_limited"
	ErrorCodeInvalidCSRF       = "invalid_csrf_token"
)

const (
	RequestIDKey contextKey = "request_id"
)
