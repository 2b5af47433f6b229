package models

import "time"

// RatingPersona is a long-lived Elo record for a (persona, category) pair,
// updated by internal/ranking after each debate completes.
type RatingPersona struct {
	Persona     string
	Category    string
	Elo         float64
	NMatches    int
	WinRate     float64
	CILow       float64
	CIHigh      float64
	LastUpdated time.Time
}

// ProviderHealthState is the in-process circuit-breaker counter set for one
// (provider, model) pair. See internal/circuitbreaker for the state
// machine built on top of these fields.
type ProviderHealthState struct {
	Provider        string
	Model           string
	WindowSeconds   int
	ErrorThreshold  float64
	MinCalls        int
	CooldownSeconds int

	TotalCalls    int
	ErrorCalls    int
	LastOpenedAt  *time.Time
	LastCheckedAt *time.Time
}
