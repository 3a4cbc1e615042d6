package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultHeatwaveThreshold is the citywide mean temperature (°C) above which
// an hour counts as a heatwave hour.
const DefaultHeatwaveThreshold = 32.0

// TemperatureSeries is the hourly temperature record for one community area.
// Hours with no reading are simply absent from Values.
type TemperatureSeries struct {
	CommArea int
	Values   map[time.Time]float64
}

// Anomaly is a community area's mean deviation from the citywide mean
// during heatwave hours.
type Anomaly struct {
	CommArea int
	HA       float64 // H_a
	HAMin    float64 // H_a - min(H_a)
	Hours    int     // heatwave hours the area reported in
}

// AnomalyResult holds per-area anomalies plus the heatwave hours they were
// computed over.
type AnomalyResult struct {
	Anomalies     []Anomaly
	HeatwaveHours []time.Time
	TotalHours    int
}

// ComputeAnomalies aligns all series on timestamp, averages the present
// readings at each hour, keeps hours whose average is strictly above
// threshold, and returns each area's mean (temp - average) over those hours.
// Anomalies are sorted by community area number.
func ComputeAnomalies(series []TemperatureSeries, threshold float64) (AnomalyResult, error) {
	if len(series) == 0 {
		return AnomalyResult{}, fmt.Errorf("compute anomalies: no temperature series")
	}

	hours := unionHours(series)
	average := make(map[time.Time]float64, len(hours))
	var hot []time.Time
	for _, h := range hours {
		var sum float64
		var n int
		for _, s := range series {
			if v, ok := s.Values[h]; ok && !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		avg := sum / float64(n)
		average[h] = avg
		if avg > threshold {
			hot = append(hot, h)
		}
	}

	if len(hot) == 0 {
		return AnomalyResult{TotalHours: len(hours)}, fmt.Errorf("%w (threshold %.1f°C over %d hours)", ErrNoHeatwave, threshold, len(hours))
	}

	anomalies := make([]Anomaly, 0, len(series))
	for _, s := range series {
		var sum float64
		var n int
		for _, h := range hot {
			v, ok := s.Values[h]
			if !ok || math.IsNaN(v) {
				continue
			}
			sum += v - average[h]
			n++
		}
		a := Anomaly{CommArea: s.CommArea, HA: math.NaN(), Hours: n}
		if n > 0 {
			a.HA = sum / float64(n)
		}
		anomalies = append(anomalies, a)
	}

	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].CommArea < anomalies[j].CommArea })

	minHA := math.Inf(1)
	for _, a := range anomalies {
		if !math.IsNaN(a.HA) && a.HA < minHA {
			minHA = a.HA
		}
	}
	for i := range anomalies {
		anomalies[i].HAMin = anomalies[i].HA - minHA
	}

	return AnomalyResult{
		Anomalies:     anomalies,
		HeatwaveHours: hot,
		TotalHours:    len(hours),
	}, nil
}

// unionHours returns every timestamp present in any series, ascending.
func unionHours(series []TemperatureSeries) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for h := range s.Values {
			seen[h] = struct{}{}
		}
	}
	hours := make([]time.Time, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	return hours
}
