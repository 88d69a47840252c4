package pokopred

import (
	"fmt"
	"math"
	"sort"
)

// Classifier is a single ensemble member predicting over {Home, Away}.
// PredictProba returns [pHome, pAway] summing to 1. Implementations must be
// deterministic: the same training data and input always yield the same
// probabilities.
type Classifier interface {
	Name() string
	Fit(rows []*FeatureRow) error
	PredictProba(row *FeatureRow) [2]float64
}

// NewClassifier builds a member by its configured name
func NewClassifier(name string) (Classifier, error) {
	switch name {
	case "logistic":
		return &logisticModel{}, nil
	case "bayes":
		return &gaussianNB{}, nil
	case "centroid":
		return &nearestCentroid{}, nil
	case "stumps":
		return &stumpCommittee{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier: %s", name)
	}
}

// classHome and classAway index the probability pair
const (
	classHome = 0
	classAway = 1
)

// trainingData extracts the numeric matrix and class indexes from rows.
// Callers must have filtered to rows labelled "H" or "A".
func trainingData(rows []*FeatureRow) ([][]float64, []int, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no training rows")
	}
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	width := len(rows[0].Features)
	for i, r := range rows {
		if len(r.Features) != width {
			return nil, nil, fmt.Errorf("inconsistent feature width: %d vs %d", len(r.Features), width)
		}
		x[i] = r.Features
		switch r.Label {
		case "H":
			y[i] = classHome
		case "A":
			y[i] = classAway
		default:
			return nil, nil, fmt.Errorf("unexpected training label %q", r.Label)
		}
	}
	return x, y, nil
}

// scaler standardizes features to zero mean and unit variance using the
// moments observed at training time
type scaler struct {
	mean []float64
	std  []float64
}

func fitScaler(x [][]float64) *scaler {
	n := len(x)
	width := len(x[0])
	s := &scaler{mean: make([]float64, width), std: make([]float64, width)}

	for _, row := range x {
		for j, v := range row {
			s.mean[j] += v
		}
	}
	for j := range s.mean {
		s.mean[j] /= float64(n)
	}
	for _, row := range x {
		for j, v := range row {
			d := v - s.mean[j]
			s.std[j] += d * d
		}
	}
	for j := range s.std {
		s.std[j] = math.Sqrt(s.std[j] / float64(n))
		if s.std[j] < 1e-9 {
			s.std[j] = 1.0
		}
	}
	return s
}

func (s *scaler) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.std[j]
	}
	return out
}

/////////////////////////////////////////////////////////////////////////
////// Logistic Regression
/////////////////////////////////////////////////////////////////////////

// logisticModel is a binary logistic regression trained by full-batch
// gradient descent from a zero initialization, so training is deterministic.
type logisticModel struct {
	scale   *scaler
	weights []float64
	bias    float64
}

const (
	logisticEpochs = 300
	logisticRate   = 0.1
	logisticL2     = 0.001
)

func (lm *logisticModel) Name() string { return "logistic" }

func (lm *logisticModel) Fit(rows []*FeatureRow) error {
	x, y, err := trainingData(rows)
	if err != nil {
		return err
	}

	lm.scale = fitScaler(x)
	scaled := make([][]float64, len(x))
	for i, row := range x {
		scaled[i] = lm.scale.transform(row)
	}

	width := len(scaled[0])
	n := float64(len(scaled))
	lm.weights = make([]float64, width)
	lm.bias = 0.0

	// target 1.0 for a home win
	for epoch := 0; epoch < logisticEpochs; epoch++ {
		gradW := make([]float64, width)
		gradB := 0.0
		for i, row := range scaled {
			target := 0.0
			if y[i] == classHome {
				target = 1.0
			}
			p := sigmoid(dot(lm.weights, row) + lm.bias)
			diff := p - target
			for j, v := range row {
				gradW[j] += diff * v
			}
			gradB += diff
		}
		for j := range lm.weights {
			lm.weights[j] -= logisticRate * (gradW[j]/n + logisticL2*lm.weights[j])
		}
		lm.bias -= logisticRate * gradB / n
	}
	return nil
}

func (lm *logisticModel) PredictProba(row *FeatureRow) [2]float64 {
	p := sigmoid(dot(lm.weights, lm.scale.transform(row.Features)) + lm.bias)
	return [2]float64{p, 1.0 - p}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

/////////////////////////////////////////////////////////////////////////
////// Gaussian Naive Bayes
/////////////////////////////////////////////////////////////////////////

type gaussianNB struct {
	mean     [2][]float64
	variance [2][]float64
	logPrior [2]float64
}

const varianceFloor = 1e-6

func (nb *gaussianNB) Name() string { return "bayes" }

func (nb *gaussianNB) Fit(rows []*FeatureRow) error {
	x, y, err := trainingData(rows)
	if err != nil {
		return err
	}

	width := len(x[0])
	counts := [2]int{}
	for c := 0; c < 2; c++ {
		nb.mean[c] = make([]float64, width)
		nb.variance[c] = make([]float64, width)
	}

	for i, row := range x {
		c := y[i]
		counts[c]++
		for j, v := range row {
			nb.mean[c][j] += v
		}
	}
	for c := 0; c < 2; c++ {
		if counts[c] == 0 {
			return fmt.Errorf("class %d has no training rows", c)
		}
		for j := range nb.mean[c] {
			nb.mean[c][j] /= float64(counts[c])
		}
		nb.logPrior[c] = math.Log(float64(counts[c]) / float64(len(x)))
	}
	for i, row := range x {
		c := y[i]
		for j, v := range row {
			d := v - nb.mean[c][j]
			nb.variance[c][j] += d * d
		}
	}
	for c := 0; c < 2; c++ {
		for j := range nb.variance[c] {
			nb.variance[c][j] /= float64(counts[c])
			if nb.variance[c][j] < varianceFloor {
				nb.variance[c][j] = varianceFloor
			}
		}
	}
	return nil
}

func (nb *gaussianNB) PredictProba(row *FeatureRow) [2]float64 {
	var logLik [2]float64
	for c := 0; c < 2; c++ {
		ll := nb.logPrior[c]
		for j, v := range row.Features {
			d := v - nb.mean[c][j]
			ll -= 0.5*math.Log(2.0*math.Pi*nb.variance[c][j]) + d*d/(2.0*nb.variance[c][j])
		}
		logLik[c] = ll
	}
	return normalizeLog(logLik)
}

// normalizeLog converts two log scores into probabilities without overflow
func normalizeLog(logs [2]float64) [2]float64 {
	m := math.Max(logs[0], logs[1])
	e0 := math.Exp(logs[0] - m)
	e1 := math.Exp(logs[1] - m)
	total := e0 + e1
	return [2]float64{e0 / total, e1 / total}
}

/////////////////////////////////////////////////////////////////////////
////// Nearest Centroid
/////////////////////////////////////////////////////////////////////////

type nearestCentroid struct {
	scale    *scaler
	centroid [2][]float64
}

func (nc *nearestCentroid) Name() string { return "centroid" }

func (nc *nearestCentroid) Fit(rows []*FeatureRow) error {
	x, y, err := trainingData(rows)
	if err != nil {
		return err
	}

	nc.scale = fitScaler(x)
	width := len(x[0])
	counts := [2]int{}
	for c := 0; c < 2; c++ {
		nc.centroid[c] = make([]float64, width)
	}
	for i, row := range x {
		c := y[i]
		counts[c]++
		for j, v := range nc.scale.transform(row) {
			nc.centroid[c][j] += v
		}
	}
	for c := 0; c < 2; c++ {
		if counts[c] == 0 {
			return fmt.Errorf("class %d has no training rows", c)
		}
		for j := range nc.centroid[c] {
			nc.centroid[c][j] /= float64(counts[c])
		}
	}
	return nil
}

func (nc *nearestCentroid) PredictProba(row *FeatureRow) [2]float64 {
	scaled := nc.scale.transform(row.Features)
	var negDist [2]float64
	for c := 0; c < 2; c++ {
		sum := 0.0
		for j, v := range scaled {
			d := v - nc.centroid[c][j]
			sum += d * d
		}
		negDist[c] = -math.Sqrt(sum)
	}
	return normalizeLog(negDist)
}

/////////////////////////////////////////////////////////////////////////
////// Decision Stump Committee
/////////////////////////////////////////////////////////////////////////

// stumpCommittee trains one threshold stump per feature and lets the stumps
// vote, each weighted by how far its training accuracy clears a coin flip.
// Candidate thresholds come from sorted feature values, so the committee is
// deterministic.
type stumpCommittee struct {
	stumps []stump
}

type stump struct {
	feature   int
	threshold float64
	// homeAbove is true when values above the threshold voted Home in training
	homeAbove bool
	weight    float64
}

func (sc *stumpCommittee) Name() string { return "stumps" }

func (sc *stumpCommittee) Fit(rows []*FeatureRow) error {
	x, y, err := trainingData(rows)
	if err != nil {
		return err
	}

	width := len(x[0])
	sc.stumps = sc.stumps[:0]

	for j := 0; j < width; j++ {
		s, ok := bestStump(x, y, j)
		if ok && s.weight > 0 {
			sc.stumps = append(sc.stumps, s)
		}
	}
	if len(sc.stumps) == 0 {
		return fmt.Errorf("no discriminative stump found")
	}
	return nil
}

// bestStump scans candidate thresholds for one feature and keeps the split
// with the highest training accuracy
func bestStump(x [][]float64, y []int, feature int) (stump, bool) {
	values := make([]float64, len(x))
	for i, row := range x {
		values[i] = row[feature]
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	best := stump{feature: feature}
	bestAcc := 0.0
	found := false

	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i] == sorted[i+1] {
			continue
		}
		threshold := (sorted[i] + sorted[i+1]) / 2.0
		correctAbove := 0 // counting "above threshold means Home"
		for k, v := range values {
			above := v > threshold
			if (above && y[k] == classHome) || (!above && y[k] == classAway) {
				correctAbove++
			}
		}
		acc := float64(correctAbove) / float64(len(values))
		homeAbove := true
		if acc < 0.5 {
			acc = 1.0 - acc
			homeAbove = false
		}
		if acc > bestAcc {
			bestAcc = acc
			best.threshold = threshold
			best.homeAbove = homeAbove
			found = true
		}
	}

	best.weight = bestAcc - 0.5
	return best, found
}

func (sc *stumpCommittee) PredictProba(row *FeatureRow) [2]float64 {
	score := 0.0 // positive favours Home
	total := 0.0
	for _, s := range sc.stumps {
		vote := -1.0
		if (row.Features[s.feature] > s.threshold) == s.homeAbove {
			vote = 1.0
		}
		score += vote * s.weight
		total += s.weight
	}
	if total == 0 {
		return [2]float64{0.5, 0.5}
	}
	// map the weighted margin in [-1, 1] onto a probability
	p := 0.5 + score/total/2.0
	return [2]float64{p, 1.0 - p}
}
