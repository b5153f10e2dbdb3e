package l5quality

import (
	"encoding/json"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/confocal.track/internal/tracking/l3detect"
	"github.com/banshee-data/confocal.track/internal/tracking/l4link"
)

// Metrics holds aggregate quality figures for one run.
type Metrics struct {
	NTracks            int         `json:"n_tracks"`
	TrackLengthHist    map[int]int `json:"track_length_hist"`    // length → number of trajectories
	DetectionsPerFrame map[int]int `json:"detections_per_frame"` // frame → candidates, frames with none omitted

	MeanTrackLength   float64 `json:"mean_track_length"`
	MedianTrackLength float64 `json:"median_track_length"`
	TotalDetections   int     `json:"total_detections"`
	LinkedDetections  int     `json:"linked_detections"`
}

// Empty returns zeroed metrics with non-nil maps.
func Empty() Metrics {
	return Metrics{
		TrackLengthHist:    map[int]int{},
		DetectionsPerFrame: map[int]int{},
	}
}

// Summarize computes metrics from the final trajectories and the per-frame
// candidates. Detection counts come from byFrame alone, so they do not
// depend on how candidates were linked.
func Summarize(trajectories []*l4link.Trajectory, byFrame [][]l3detect.Candidate) Metrics {
	m := Empty()

	for t, cands := range byFrame {
		if len(cands) == 0 {
			continue
		}
		m.DetectionsPerFrame[t] = len(cands)
		m.TotalDetections += len(cands)
	}

	if len(trajectories) == 0 {
		return m
	}

	lengths := make([]float64, 0, len(trajectories))
	for _, tr := range trajectories {
		n := tr.Len()
		m.TrackLengthHist[n]++
		m.LinkedDetections += n
		lengths = append(lengths, float64(n))
	}
	m.NTracks = len(trajectories)

	sort.Float64s(lengths)
	m.MeanTrackLength = stat.Mean(lengths, nil)
	m.MedianTrackLength = stat.Quantile(0.5, stat.Empirical, lengths, nil)
	return m
}

// Summary returns the metrics as plain nested maps with string keys, the
// shape consumed by reporting tools.
func (m Metrics) Summary() map[string]any {
	return map[string]any{
		"n_tracks":             m.NTracks,
		"track_length_hist":    stringKeys(m.TrackLengthHist),
		"detections_per_frame": stringKeys(m.DetectionsPerFrame),
		"mean_track_length":    m.MeanTrackLength,
		"median_track_length":  m.MedianTrackLength,
		"total_detections":     m.TotalDetections,
		"linked_detections":    m.LinkedDetections,
	}
}

func stringKeys(in map[int]int) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[strconv.Itoa(k)] = v
	}
	return out
}

// ToJSON serializes the metrics.
func (m Metrics) ToJSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseMetrics deserializes metrics written by ToJSON.
func ParseMetrics(data string) (Metrics, error) {
	m := Empty()
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return Metrics{}, err
	}
	return m, nil
}
