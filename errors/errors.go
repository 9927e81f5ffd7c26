package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error is an error that knows which HTTP status it maps to.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return e.Message
}

// New returns a new *Error
func New(message string, status int) *Error {
	return &Error{Message: message, Status: status}
}

var (
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)

	// Domain errors. Compare with errors.Is; callers may wrap them with %w.
	ErrInvalidParticipant  = New("invalid participant", http.StatusBadRequest)
	ErrNotAParticipant     = New("sender is not a participant in the conversation", http.StatusForbidden)
	ErrInvalidMessage      = New("message body must not be empty", http.StatusBadRequest)
	ErrInvalidRating       = New("rating score must be between 1 and 5", http.StatusBadRequest)
	ErrSelfRatingForbidden = New("users cannot rate themselves", http.StatusBadRequest)
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrProfileExists       = New("profile already exists", http.StatusConflict)
	ErrPromptRequired      = New("Prompt is required", http.StatusBadRequest)
	ErrGenerationFailed    = New("generation failed", http.StatusBadGateway)
	ErrConcurrencyConflict = New("concurrent update conflict", http.StatusConflict)
	ErrUnavailable         = New("subscription transport unavailable", http.StatusServiceUnavailable)
)

// Wrap annotates a sentinel with detail while keeping errors.Is working.
func Wrap(sentinel *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// StatusOf returns the HTTP status an error maps to, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// ErrorHandler is used by the rate limiter when a client exceeds its quota
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"message":   "too many requests, try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
		"errors":    "rate limit exceeded",
		"status":    http.StatusText(http.StatusTooManyRequests),
		"timestamp": time.Now().Format(time.RFC850),
	})
}
