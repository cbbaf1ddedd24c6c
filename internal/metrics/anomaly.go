package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
)

// minAnomalyBuckets is the smallest hourly series the detector accepts.
const minAnomalyBuckets = 3

const (
	spikeConfidence = 0.95
	dropConfidence  = 0.85
)

// Anomaly is one detected deviation in a kind's hourly series.
type Anomaly struct {
	Kind       event.Kind `json:"kind"`
	Type       string     `json:"type"` // "spike" or "drop"
	Severity   string     `json:"severity"`
	Threshold  float64    `json:"threshold"`
	Value      int        `json:"value"`
	Confidence float64    `json:"confidence"`
	DetectedAt time.Time  `json:"detected_at"`
}

// Anomalies buckets the repo's window into hourly counts per kind and
// flags deviations: a bucket above mean+2σ is a spike (severity high
// above mean+3σ, else medium); a bucket below max(0, mean−2σ) is a drop,
// only when the mean exceeds 5. Kinds with fewer than three buckets of
// data yield nothing. σ is the sample standard deviation.
func (s *Service) Anomalies(ctx context.Context, repo string, hours int) ([]Anomaly, error) {
	if repo == "" {
		return nil, fmt.Errorf("%w: repo is required", ErrInvalidArgument)
	}
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}

	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	buckets, err := s.store.Timeseries(ctx, since, time.Hour, repo)
	if err != nil {
		return nil, err
	}
	if len(buckets) < minAnomalyBuckets {
		return []Anomaly{}, nil
	}

	anomalies := []Anomaly{}
	for _, kind := range event.Kinds {
		series := make([]float64, len(buckets))
		seen := false
		for i, b := range buckets {
			series[i] = float64(b.Counts[kind])
			if b.Counts[kind] > 0 {
				seen = true
			}
		}
		if !seen {
			continue
		}

		m := mean(series)
		sd := stddev(series)
		spikeAt := m + 2*sd
		highAt := m + 3*sd
		dropAt := m - 2*sd
		if dropAt < 0 {
			dropAt = 0
		}

		for i, v := range series {
			switch {
			case v > spikeAt:
				severity := "medium"
				if v > highAt {
					severity = "high"
				}
				anomalies = append(anomalies, Anomaly{
					Kind:       kind,
					Type:       "spike",
					Severity:   severity,
					Threshold:  spikeAt,
					Value:      int(v),
					Confidence: spikeConfidence,
					DetectedAt: buckets[i].Start,
				})
			case v < dropAt && m > 5:
				anomalies = append(anomalies, Anomaly{
					Kind:       kind,
					Type:       "drop",
					Severity:   "medium",
					Threshold:  dropAt,
					Value:      int(v),
					Confidence: dropConfidence,
					DetectedAt: buckets[i].Start,
				})
			}
		}
	}
	return anomalies, nil
}
