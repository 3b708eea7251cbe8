package calibration

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/signature"
)

const (
	StatusInsufficient   = "insufficient_data"
	StatusWellCalibrated = "well_calibrated"
	StatusOverconfident  = "overconfident"
	StatusUnderconfident = "underconfident"
)

var ErrRecordNotFound = errors.New("calibration record not found")

// Config holds the tuned calibration constants.
type Config struct {
	MaxRecords       int
	MinResolved      int
	MinBucketSamples int
	MinFactor        float64
	MaxFactor        float64
	WellCalibrated   float64
}

func DefaultConfig() Config {
	return Config{
		MaxRecords:       1000,
		MinResolved:      20,
		MinBucketSamples: 5,
		MinFactor:        0.5,
		MaxFactor:        1.5,
		WellCalibrated:   0.05,
	}
}

// Tracker keeps prediction/outcome pairs and derives a confidence rescaling.
type Tracker struct {
	cfg     Config
	records []models.CalibrationRecord
	index   map[string]int
}

func NewTracker(cfg Config) *Tracker {
	d := DefaultConfig()
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = d.MaxRecords
	}
	if cfg.MinResolved <= 0 {
		cfg.MinResolved = d.MinResolved
	}
	if cfg.MinBucketSamples <= 0 {
		cfg.MinBucketSamples = d.MinBucketSamples
	}
	if cfg.MinFactor <= 0 || cfg.MaxFactor <= cfg.MinFactor {
		cfg.MinFactor, cfg.MaxFactor = d.MinFactor, d.MaxFactor
	}
	if cfg.WellCalibrated <= 0 {
		cfg.WellCalibrated = d.WellCalibrated
	}
	return &Tracker{cfg: cfg, index: make(map[string]int)}
}

// RecordPrediction registers a stated confidence and returns the record ID.
func (t *Tracker) RecordPrediction(confidence float64, dir models.Direction, symbol, horizon string, now time.Time) string {
	rec := models.CalibrationRecord{
		ID:                  uuid.NewString(),
		PredictedConfidence: signature.Clamp(confidence, 0, 1),
		PredictedDirection:  dir,
		Symbol:              symbol,
		Horizon:             horizon,
		CreatedAt:           now,
	}
	t.records = append(t.records, rec)
	if len(t.records) > t.cfg.MaxRecords {
		t.records = t.records[len(t.records)-t.cfg.MaxRecords:]
		t.reindex()
	} else {
		t.index[rec.ID] = len(t.records) - 1
	}
	return rec.ID
}

// ResolvePrediction marks a record correct or incorrect. Resolving twice keeps the first outcome.
func (t *Tracker) ResolvePrediction(id string, actual models.Direction, now time.Time) (models.CalibrationRecord, error) {
	i, ok := t.index[id]
	if !ok {
		return models.CalibrationRecord{}, ErrRecordNotFound
	}
	r := &t.records[i]
	if r.Resolved == nil {
		r.Resolved = &models.CalibrationResolution{
			ActualDirection: actual,
			WasCorrect:      actual == r.PredictedDirection,
			ResolvedAt:      now,
		}
	}
	return *r, nil
}

func (t *Tracker) reindex() {
	t.index = make(map[string]int, len(t.records))
	for i, r := range t.records {
		t.index[r.ID] = i
	}
}

func (t *Tracker) ResolvedCount() int {
	n := 0
	for _, r := range t.records {
		if r.Resolved != nil {
			n++
		}
	}
	return n
}

func (t *Tracker) Len() int { return len(t.records) }

func bucketOf(conf float64) int {
	b := int(conf * 10)
	if b < 0 {
		return 0
	}
	if b > 9 {
		return 9
	}
	return b
}

// Advice buckets resolved records by confidence decile and reports ECE and the global factor.
func (t *Tracker) Advice() models.CalibrationAdvice {
	confs := make([][]float64, 10)
	hits := make([]int, 10)
	resolved := 0
	for _, r := range t.records {
		if r.Resolved == nil {
			continue
		}
		resolved++
		b := bucketOf(r.PredictedConfidence)
		confs[b] = append(confs[b], r.PredictedConfidence)
		if r.Resolved.WasCorrect {
			hits[b]++
		}
	}
	adv := models.CalibrationAdvice{Status: StatusInsufficient, SampleSize: resolved, AdjustmentFactor: 1}
	if resolved < t.cfg.MinResolved {
		return adv
	}

	var eceSum, wAcc, wConf float64
	nonEmpty := 0
	for b := 0; b < 10; b++ {
		n := len(confs[b])
		if n == 0 {
			continue
		}
		mean, err := stats.Mean(confs[b])
		if err != nil {
			continue
		}
		acc := float64(hits[b]) / float64(n)
		adv.Buckets = append(adv.Buckets, models.CalibrationBucket{
			Lower:          float64(b) / 10,
			Upper:          float64(b+1) / 10,
			Count:          n,
			MeanConfidence: mean,
			Accuracy:       acc,
		})
		eceSum += math.Abs(acc - mean)
		wAcc += float64(n) * acc
		wConf += float64(n) * mean
		nonEmpty++
	}
	if nonEmpty > 0 {
		adv.ECE = eceSum / float64(nonEmpty)
	}
	if wConf > 0 {
		adv.AdjustmentFactor = signature.Clamp(wAcc/wConf, t.cfg.MinFactor, t.cfg.MaxFactor)
	}
	switch {
	case adv.ECE < t.cfg.WellCalibrated:
		adv.Status = StatusWellCalibrated
	case adv.AdjustmentFactor < 1:
		adv.Status = StatusOverconfident
	default:
		adv.Status = StatusUnderconfident
	}
	return adv
}

// Adjust rescales a confidence toward observed accuracy. A bucket with enough
// samples uses its own ratio; otherwise the global factor applies.
func (t *Tracker) Adjust(conf float64) float64 {
	adv := t.Advice()
	if adv.Status == StatusInsufficient {
		return conf
	}
	b := bucketOf(conf)
	for _, bk := range adv.Buckets {
		if bk.Lower != float64(b)/10 || bk.Count < t.cfg.MinBucketSamples || bk.MeanConfidence <= 0 {
			continue
		}
		return signature.Clamp(conf*signature.Clamp(bk.Accuracy/bk.MeanConfidence, t.cfg.MinFactor, t.cfg.MaxFactor), 0, 1)
	}
	return signature.Clamp(conf*adv.AdjustmentFactor, 0, 1)
}
