package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRankingNotFound = errors.New("ranking not found")
	ErrUnauthenticated = errors.New("missing user identity")
	ErrInvalidScope    = errors.New("invalid leaderboard scope")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
	ErrUnknownTier     = errors.New("unknown rank tier")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrRankingNotFound)
}
