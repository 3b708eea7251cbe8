package fusion

import (
	"SignalFuse/internal/services/calibration"
	"SignalFuse/internal/services/convergence"
	"SignalFuse/internal/services/correlation"
	"SignalFuse/internal/services/phase"
)

// Config carries every tuned constant of the engine.
type Config struct {
	VoteThreshold      float64
	DirectionThreshold float64
	NoiseThreshold     float64
	NoisePenalty       float64
	ConfidenceCap      float64
	HistorySize        int
	ResolvedMemory     int
	CalibrationGate    int
	DefaultAccuracy    float64
	HitAlpha           float64
	MissAlpha          float64
	AccuracyFloor      float64
	VelocityWindow     int
	SignalBuffer       int
	CloudScale         float64
	DefaultHorizon     string

	TruthConvergence float64
	TruthPhase       float64
	TruthAgreement   float64

	CorrelationWindow int
	Convergence       convergence.Config
	Calibration       calibration.Config
	Phase             phase.Config
}

func DefaultConfig() Config {
	return Config{
		VoteThreshold:      0.1,
		DirectionThreshold: 0.15,
		NoiseThreshold:     0.7,
		NoisePenalty:       0.7,
		ConfidenceCap:      0.95,
		HistorySize:        1000,
		ResolvedMemory:     5000,
		CalibrationGate:    50,
		DefaultAccuracy:    0.5,
		HitAlpha:           0.05,
		MissAlpha:          0.15,
		AccuracyFloor:      0.05,
		VelocityWindow:     10,
		SignalBuffer:       50,
		CloudScale:         0.1,
		DefaultHorizon:     "1h",
		TruthConvergence:   0.4,
		TruthPhase:         0.3,
		TruthAgreement:     0.3,
		CorrelationWindow:  correlation.DefaultWindow,
		Convergence:        convergence.DefaultConfig(),
		Calibration:        calibration.DefaultConfig(),
		Phase:              phase.DefaultConfig(),
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	setF := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setI := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setF(&c.VoteThreshold, d.VoteThreshold)
	setF(&c.DirectionThreshold, d.DirectionThreshold)
	setF(&c.NoiseThreshold, d.NoiseThreshold)
	setF(&c.NoisePenalty, d.NoisePenalty)
	setF(&c.ConfidenceCap, d.ConfidenceCap)
	setI(&c.HistorySize, d.HistorySize)
	setI(&c.ResolvedMemory, d.ResolvedMemory)
	setI(&c.CalibrationGate, d.CalibrationGate)
	setF(&c.DefaultAccuracy, d.DefaultAccuracy)
	setF(&c.HitAlpha, d.HitAlpha)
	setF(&c.MissAlpha, d.MissAlpha)
	setF(&c.AccuracyFloor, d.AccuracyFloor)
	setI(&c.VelocityWindow, d.VelocityWindow)
	setI(&c.SignalBuffer, d.SignalBuffer)
	setF(&c.CloudScale, d.CloudScale)
	if c.DefaultHorizon == "" {
		c.DefaultHorizon = d.DefaultHorizon
	}
	if c.TruthConvergence <= 0 && c.TruthPhase <= 0 && c.TruthAgreement <= 0 {
		c.TruthConvergence, c.TruthPhase, c.TruthAgreement = d.TruthConvergence, d.TruthPhase, d.TruthAgreement
	}
	setI(&c.CorrelationWindow, d.CorrelationWindow)
	if c.Phase.SyncTolerance <= 0 {
		c.Phase = d.Phase
	}
	if c.ConfidenceCap > 1 {
		c.ConfidenceCap = 1
	}
	return c
}
