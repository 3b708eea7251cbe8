package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"SignalFuse/internal/domain/models"
)

// SimulationConfig drives a synthetic regime-switching random walk.
type SimulationConfig struct {
	Symbols      []string
	Steps        int
	Interval     time.Duration
	ResolveAfter int
	Drift        float64
	Volatility   float64
	SwitchProb   float64
	NeutralBand  float64
	StartPrice   float64
	Seed         int64
	Start        time.Time
}

func (c SimulationConfig) withDefaults() SimulationConfig {
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"SIM"}
	}
	if c.Steps <= 0 {
		c.Steps = 2000
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.ResolveAfter <= 0 {
		c.ResolveAfter = 60
	}
	if c.Drift == 0 {
		c.Drift = 0.0003
	}
	if c.Volatility <= 0 {
		c.Volatility = 0.001
	}
	if c.SwitchProb <= 0 {
		c.SwitchProb = 0.005
	}
	if c.NeutralBand <= 0 {
		c.NeutralBand = 0.0005
	}
	if c.StartPrice <= 0 {
		c.StartPrice = 100
	}
	if c.Start.IsZero() {
		c.Start = time.Now().UTC().Add(-time.Duration(c.Steps) * c.Interval)
	}
	return c
}

// SimulationReport summarizes one simulation run.
type SimulationReport struct {
	Trades      int
	Predictions int
	Resolved    int
	Correct     int
	HitRate     float64
	Snapshot    models.EngineSnapshot
}

type pendingPrediction struct {
	id     string
	symbol string
	price  float64
	step   int
}

// Simulator replays synthetic trades through the trade processor and feeds
// realized outcomes back into the engine.
type Simulator struct {
	svc  *PredictionService
	proc *TradeProcessor
	cfg  SimulationConfig
}

func NewSimulator(svc *PredictionService, proc *TradeProcessor, cfg SimulationConfig) *Simulator {
	return &Simulator{svc: svc, proc: proc, cfg: cfg.withDefaults()}
}

func (s *Simulator) Run(ctx context.Context) (SimulationReport, error) {
	cfg := s.cfg
	rng := rand.New(rand.NewSource(cfg.Seed))
	prices := make(map[string]float64, len(cfg.Symbols))
	drift := make(map[string]float64, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		prices[sym] = cfg.StartPrice
		drift[sym] = cfg.Drift
	}

	var rep SimulationReport
	var pending []pendingPrediction
	lastID := ""
	for step := 0; step < cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		ts := cfg.Start.Add(time.Duration(step) * cfg.Interval)
		for _, sym := range cfg.Symbols {
			if rng.Float64() < cfg.SwitchProb {
				drift[sym] = -drift[sym]
			}
			prices[sym] *= math.Exp(drift[sym] + cfg.Volatility*rng.NormFloat64())
			trade := &models.Trade{Symbol: sym, Price: prices[sym], Volume: 1 + rng.ExpFloat64()*10, Timestamp: ts}
			if err := s.proc.Process(ctx, trade); err != nil {
				return rep, fmt.Errorf("simulate step %d: %w", step, err)
			}
			rep.Trades++

			if last := s.svc.Runner().Snapshot().LastPrediction; last != nil && last.ID != lastID {
				lastID = last.ID
				rep.Predictions++
				pending = append(pending, pendingPrediction{id: last.ID, symbol: last.Prediction.Symbol, price: prices[last.Prediction.Symbol], step: step})
			}
		}

		kept := pending[:0]
		for _, p := range pending {
			if step-p.step < cfg.ResolveAfter {
				kept = append(kept, p)
				continue
			}
			ret := prices[p.symbol]/p.price - 1
			res, err := s.svc.RecordOutcome(ctx, models.Outcome{
				PredictionID:    p.id,
				ActualDirection: realizedDirection(ret, cfg.NeutralBand),
				ActualMagnitude: math.Abs(ret),
				ResolvedAt:      ts,
			})
			if err != nil {
				return rep, fmt.Errorf("simulate outcome %s: %w", p.id, err)
			}
			rep.Resolved++
			if res.Correct {
				rep.Correct++
			}
		}
		pending = kept
	}

	if rep.Resolved > 0 {
		rep.HitRate = float64(rep.Correct) / float64(rep.Resolved)
	}
	rep.Snapshot = *s.svc.Runner().Snapshot()
	return rep, nil
}

func realizedDirection(ret, band float64) models.Direction {
	switch {
	case ret > band:
		return models.DirectionUp
	case ret < -band:
		return models.DirectionDown
	default:
		return models.DirectionNeutral
	}
}
