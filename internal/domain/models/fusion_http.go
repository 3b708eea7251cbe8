package models

import "time"

// Requests for the fusion HTTP endpoints.

type PredictionRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	Horizon string `query:"horizon" json:"horizon" validate:"omitempty,oneof=15m 1h 4h 1d"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type OutcomeRequest struct {
	PredictionID    string    `json:"prediction_id" validate:"required"`
	ActualDirection string    `json:"actual_direction" validate:"required,oneof=up down neutral"`
	ActualMagnitude float64   `json:"actual_magnitude"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// Outcome converts the request into a domain Outcome.
func (r OutcomeRequest) Outcome() Outcome {
	return Outcome{
		PredictionID:    r.PredictionID,
		ActualDirection: Direction(r.ActualDirection),
		ActualMagnitude: r.ActualMagnitude,
		ResolvedAt:      r.ResolvedAt,
	}
}

type TickRequest struct {
	Symbol    string             `json:"symbol" validate:"required"`
	Timestamp time.Time          `json:"timestamp"`
	Price     float64            `json:"price" validate:"gte=0"`
	Volume    float64            `json:"volume" validate:"gte=0"`
	Values    map[string]float64 `json:"values"`
}

// Features converts the request into MarketFeatures.
func (r TickRequest) Features() MarketFeatures {
	return MarketFeatures{Symbol: r.Symbol, Timestamp: r.Timestamp, Price: r.Price, Volume: r.Volume, Values: r.Values}
}

type SignaturesRequest struct {
	Timestamp  time.Time         `json:"timestamp"`
	Signatures []DomainSignature `json:"signatures" validate:"required,min=1,dive"`
}

// ConvergenceView is the response of the convergence endpoint.
type ConvergenceView struct {
	Stats  ConvergenceStats   `json:"stats"`
	Events []ConvergenceEvent `json:"events"`
}
