package l6objects

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// FalsePositiveLabel is the classifier label damped during identification.
const FalsePositiveLabel = "false-positive"

// Identification constants.
const (
	falsePositiveDamping = 0.8
	stateDecay           = 0.98 // roughly a 3 s half-life at 9 fps
	predictionSmoothing  = 0.1
	initialNovelty       = 0.5
	massWeightDivisor    = 20.0
	minMassWeight        = 0.02
)

// ErrEmptyTrack is returned when identifying a track with no frames.
var ErrEmptyTrack = errors.New("track has no frames to classify")

// Classifier scores one frame of channel data. state carries recurrent
// model state between frames and is nil for the first frame.
type Classifier interface {
	Labels() []string
	Classify(frame []float32, state []float32) (scores []float32, novelty float32, newState []float32, err error)
}

// TrackPrediction is the per-frame smoothed classification of one track.
type TrackPrediction struct {
	TrackID     int
	Labels      []string
	Predictions [][]float64
	Novelties   []float64
}

// ClassBestScores returns the highest smoothed score of each label.
func (p *TrackPrediction) ClassBestScores() []float64 {
	best := make([]float64, len(p.Labels))
	for _, pred := range p.Predictions {
		for i, v := range pred {
			best[i] = math.Max(best[i], v)
		}
	}
	return best
}

// BestLabel returns the label with the highest best score and that score.
func (p *TrackPrediction) BestLabel() (string, float64) {
	if len(p.Labels) == 0 || len(p.Predictions) == 0 {
		return "", 0
	}
	best := p.ClassBestScores()
	i := floats.MaxIdx(best)
	return p.Labels[i], best[i]
}

// AverageNovelty is the mean smoothed novelty.
func (p *TrackPrediction) AverageNovelty() float64 {
	if len(p.Novelties) == 0 {
		return 0
	}
	return floats.Sum(p.Novelties) / float64(len(p.Novelties))
}

// MaxNovelty is the largest smoothed novelty.
func (p *TrackPrediction) MaxNovelty() float64 {
	if len(p.Novelties) == 0 {
		return 0
	}
	return floats.Max(p.Novelties)
}

// IdentifyTrack classifies every exported frame, carrying classifier
// state forward. Raw scores have the false-positive label damped and are
// weighted by the square root of the clipped region mass; the result is
// exponentially smoothed, seeded by the first frame.
func IdentifyTrack(c Classifier, exp *TrackExport) (*TrackPrediction, error) {
	if exp.Len() == 0 {
		return nil, fmt.Errorf("track %d: %w", exp.TrackID, ErrEmptyTrack)
	}
	labels := c.Labels()
	fp := -1
	for i, l := range labels {
		if l == FalsePositiveLabel {
			fp = i
		}
	}

	pred := &TrackPrediction{TrackID: exp.TrackID, Labels: labels}
	var state []float32
	var smooth []float64
	var smoothNovelty float64

	for i := 0; i < exp.Len(); i++ {
		scores, novelty, next, err := c.Classify(exp.ChannelData(i), state)
		if err != nil {
			return nil, fmt.Errorf("classify track %d frame %d: %w", exp.TrackID, i, err)
		}
		if len(scores) != len(labels) {
			return nil, fmt.Errorf("classify track %d frame %d: %d scores for %d labels",
				exp.TrackID, i, len(scores), len(labels))
		}
		for j := range next {
			next[j] *= stateDecay
		}
		state = next

		weight := math.Sqrt(math.Max(minMassWeight, math.Min(1, float64(exp.Stats.BoundsHistory[i].Mass)/massWeightDivisor)))
		raw := make([]float64, len(scores))
		for j, s := range scores {
			raw[j] = float64(s)
			if j == fp {
				raw[j] *= falsePositiveDamping
			}
			raw[j] *= weight
		}

		if smooth == nil {
			smooth = raw
			smoothNovelty = initialNovelty
		} else {
			blended := make([]float64, len(raw))
			for j := range raw {
				blended[j] = (1-predictionSmoothing)*smooth[j] + predictionSmoothing*raw[j]
			}
			smooth = blended
			smoothNovelty = (1-predictionSmoothing)*smoothNovelty + predictionSmoothing*float64(novelty)
		}
		pred.Predictions = append(pred.Predictions, smooth)
		pred.Novelties = append(pred.Novelties, smoothNovelty)
	}
	return pred, nil
}

// LabelScore is one entry of a clip-level prediction.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClipPrediction ranks labels by their best score across all track
// predictions, highest first.
func ClipPrediction(labels []string, predictions []*TrackPrediction) []LabelScore {
	best := make([]float64, len(labels))
	for _, p := range predictions {
		for i, v := range p.ClassBestScores() {
			if i < len(best) {
				best[i] = math.Max(best[i], v)
			}
		}
	}
	out := make([]LabelScore, len(labels))
	for i, l := range labels {
		out[i] = LabelScore{Label: l, Score: best[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
