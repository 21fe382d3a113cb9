package ledger

import "errors"

// Sentinel errors returned by every backend. Match them with errors.Is.
var (
	ErrUnknownRound      = errors.New("ledger: unknown round")
	ErrRoundInactive     = errors.New("ledger: round is not active")
	ErrRoundNotEnded     = errors.New("ledger: round has not ended")
	ErrNotCreator        = errors.New("ledger: caller is not the round creator")
	ErrNoEntry           = errors.New("ledger: no started entry")
	ErrAttemptsExhausted = errors.New("ledger: attempts exhausted for this entry")
	ErrAttemptActive     = errors.New("ledger: an attempt is already active")
	ErrNoAttempt         = errors.New("ledger: no active attempt")
	ErrNotOperator       = errors.New("ledger: caller is not an approved operator")
	ErrScoreCap          = errors.New("ledger: score exceeds allowed rate")
	ErrObstacleOrder     = errors.New("ledger: obstacle count must increase")
	ErrInsufficientFee   = errors.New("ledger: payment below entry fee")
	ErrInvalidAmount     = errors.New("ledger: invalid amount")
)

var codes = map[error]string{
	ErrUnknownRound:      "unknown_round",
	ErrRoundInactive:     "round_inactive",
	ErrRoundNotEnded:     "round_not_ended",
	ErrNotCreator:        "not_creator",
	ErrNoEntry:           "no_entry",
	ErrAttemptsExhausted: "attempts_exhausted",
	ErrAttemptActive:     "attempt_active",
	ErrNoAttempt:         "no_attempt",
	ErrNotOperator:       "not_operator",
	ErrScoreCap:          "score_cap",
	ErrObstacleOrder:     "obstacle_order",
	ErrInsufficientFee:   "insufficient_fee",
	ErrInvalidAmount:     "invalid_amount",
}

// Code returns the wire code for a sentinel wrapped in err, or "" if none.
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// FromCode returns the sentinel for a wire code, or nil if unknown.
func FromCode(code string) error {
	for sentinel, c := range codes {
		if c == code {
			return sentinel
		}
	}
	return nil
}

// IsRejection reports whether err is a ledger rule rejection rather than a
// transport failure. Rejections are not worth retrying unchanged.
func IsRejection(err error) bool {
	return Code(err) != ""
}
