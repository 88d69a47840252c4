package pokopred

import (
	"sync"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
)

// EnsemblePrediction is the soft-vote output for one fixture. Confidence is
// the averaged winning-class probability on a 0-10 scale, the scale the
// draw-conversion threshold compares against.
type EnsemblePrediction struct {
	Label      string // "H" or "A"
	Confidence float64
	ProbHome   float64
	ProbAway   float64
}

// Ensemble is an equal-weight soft-voting committee over {Home, Away}.
// Members that fail to train are excluded; the rest carry the vote.
type Ensemble struct {
	members  []Classifier
	trained  []Classifier
	failures []string
	cfg      *Config
}

// NewEnsemble constructs the configured members. Unknown member names fail
// construction rather than silently shrinking the committee.
func NewEnsemble(cfg *Config) (*Ensemble, error) {
	members := make([]Classifier, 0, len(cfg.EnsembleMembers))
	for _, name := range cfg.EnsembleMembers {
		m, err := NewClassifier(name)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return &Ensemble{members: members, cfg: cfg}, nil
}

// Fit trains every member on the labelled home/away rows. Draw and unlabelled
// rows are excluded from the binary task. Members train concurrently; a
// member whose Fit fails is logged and dropped from the vote.
func (e *Ensemble) Fit(rows []*FeatureRow) error {
	var labelled []*FeatureRow
	homeCount := 0
	for _, r := range rows {
		switch r.Label {
		case "H":
			homeCount++
			labelled = append(labelled, r)
		case "A":
			labelled = append(labelled, r)
		}
	}

	if len(labelled) < e.cfg.MinTrainingRows {
		return &InsufficientDataError{Rows: len(labelled), Required: e.cfg.MinTrainingRows}
	}

	e.checkBalance(labelled, homeCount)

	errs := make([]error, len(e.members))
	var wg sync.WaitGroup
	for i, m := range e.members {
		wg.Add(1)
		go func(i int, m Classifier) {
			defer wg.Done()
			errs[i] = m.Fit(labelled)
		}(i, m)
	}
	wg.Wait()

	e.trained = e.trained[:0]
	e.failures = e.failures[:0]
	for i, m := range e.members {
		if errs[i] != nil {
			logger.Warn("Ensemble member failed to train, excluding", m.Name(), errs[i])
			e.failures = append(e.failures, m.Name()+": "+errs[i].Error())
			continue
		}
		e.trained = append(e.trained, m)
	}

	logger.Info("Ensemble trained", len(e.trained), "of", len(e.members), "members on", len(labelled), "rows")
	return nil
}

// checkBalance logs and returns a ClassImbalanceWarning when one class has
// near-zero representation, nil otherwise. The warning never aborts training.
func (e *Ensemble) checkBalance(labelled []*FeatureRow, homeCount int) *ClassImbalanceWarning {
	total := len(labelled)
	awayCount := total - homeCount

	minority, label := homeCount, "H"
	if awayCount < minority {
		minority, label = awayCount, "A"
	}
	if float64(minority)/float64(total) >= e.cfg.ImbalanceRatio {
		return nil
	}
	w := &ClassImbalanceWarning{Label: label, Count: minority, Total: total}
	logger.Warn("Training data is imbalanced", w)
	return w
}

// TrainedMembers returns the names of members carrying the vote
func (e *Ensemble) TrainedMembers() []string {
	names := make([]string, 0, len(e.trained))
	for _, m := range e.trained {
		names = append(names, m.Name())
	}
	return names
}

// Predict soft-votes the trained members over one fixture. Deterministic:
// member probabilities are averaged in construction order and ties go to the
// home side.
func (e *Ensemble) Predict(row *FeatureRow) (*EnsemblePrediction, error) {
	if len(e.trained) == 0 {
		return nil, &EnsembleUnavailableError{Failures: append([]string(nil), e.failures...)}
	}

	var sumHome, sumAway float64
	for _, m := range e.trained {
		probs := m.PredictProba(row)
		sumHome += probs[0]
		sumAway += probs[1]
	}
	n := float64(len(e.trained))
	pHome := sumHome / n
	pAway := sumAway / n

	pred := &EnsemblePrediction{ProbHome: pHome, ProbAway: pAway}
	if pHome >= pAway {
		pred.Label = "H"
		pred.Confidence = pHome * 10.0
	} else {
		pred.Label = "A"
		pred.Confidence = pAway * 10.0
	}
	return pred, nil
}
