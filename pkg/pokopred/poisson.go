package pokopred

import (
	"math"
)

// DrawEstimator produces the draw likelihood for a fixture from the two
// teams' causal snapshots. It builds an analytic Poisson scoreline matrix
// with a Dixon-Coles low-score correction; no sampling is involved, so the
// same snapshots always yield the same probability.
type DrawEstimator struct {
	cfg *Config
}

// NewDrawEstimator returns an estimator bound to the run configuration
func NewDrawEstimator(cfg *Config) *DrawEstimator {
	return &DrawEstimator{cfg: cfg}
}

// OutcomeProbabilities holds the three-way match outcome distribution
type OutcomeProbabilities struct {
	HomeWin float64
	Draw    float64
	AwayWin float64
}

// EstimateDrawProbability returns the draw mass in [0,1] for a fixture.
// Nil snapshots fall back to the league-neutral scoring priors from Config.
func (de *DrawEstimator) EstimateDrawProbability(home, away *TeamStats) float64 {
	return de.EstimateOutcomes(home, away).Draw
}

// EstimateOutcomes computes the full H/D/A distribution for a fixture
func (de *DrawEstimator) EstimateOutcomes(home, away *TeamStats) OutcomeProbabilities {
	homeExpected := de.expectedGoals(home, away, true)
	awayExpected := de.expectedGoals(away, home, false)

	matrix := scorelineMatrix(homeExpected, awayExpected, de.cfg.GoalRange)
	matrix = dixonColesCorrection(matrix, homeExpected, awayExpected, de.cfg.DixonColesRho)

	homeWin, draw, awayWin := matchOutcomeProbabilities(matrix)
	return OutcomeProbabilities{HomeWin: homeWin, Draw: draw, AwayWin: awayWin}
}

// expectedGoals blends the attacking side's scoring rate with the defending
// side's concession rate for the relevant venue
func (de *DrawEstimator) expectedGoals(attacking, defending *TeamStats, isHome bool) float64 {
	var attackRate, concedeRate float64

	if isHome {
		attackRate = de.cfg.DefaultHomeGoalsPerGame
		concedeRate = de.cfg.DefaultHomeGoalsPerGame
		if attacking != nil && attacking.HomeGamesPlayed > 0 {
			attackRate = float64(attacking.HomeGoals) / float64(attacking.HomeGamesPlayed)
		}
		if defending != nil && defending.AwayGamesPlayed > 0 {
			concedeRate = float64(defending.AwayConceded) / float64(defending.AwayGamesPlayed)
		}
	} else {
		attackRate = de.cfg.DefaultAwayGoalsPerGame
		concedeRate = de.cfg.DefaultAwayGoalsPerGame
		if attacking != nil && attacking.AwayGamesPlayed > 0 {
			attackRate = float64(attacking.AwayGoals) / float64(attacking.AwayGamesPlayed)
		}
		if defending != nil && defending.HomeGamesPlayed > 0 {
			concedeRate = float64(defending.HomeConceded) / float64(defending.HomeGamesPlayed)
		}
	}

	expected := (attackRate + concedeRate) / 2.0

	if expected < 0 {
		expected = 0
	}
	if expected > de.cfg.MaxGoalsCap {
		expected = de.cfg.MaxGoalsCap
	}
	return expected
}

// poissonPmf is the probability of exactly k goals at rate lambda
func poissonPmf(k int, lambda float64) float64 {
	if lambda <= 0 {
		if k == 0 {
			return 1.0
		}
		return 0.0
	}
	logP := float64(k)*math.Log(lambda) - lambda - logFactorial(k)
	return math.Exp(logP)
}

func logFactorial(n int) float64 {
	sum := 0.0
	for i := 2; i <= n; i++ {
		sum += math.Log(float64(i))
	}
	return sum
}

// scorelineMatrix builds the outer product of the two goal distributions,
// considering scores from 0 to maxGoals-1
func scorelineMatrix(homeExpected, awayExpected float64, maxGoals int) [][]float64 {
	homeProbs := make([]float64, maxGoals)
	awayProbs := make([]float64, maxGoals)
	for g := 0; g < maxGoals; g++ {
		homeProbs[g] = poissonPmf(g, homeExpected)
		awayProbs[g] = poissonPmf(g, awayExpected)
	}

	matrix := make([][]float64, maxGoals)
	for i := 0; i < maxGoals; i++ {
		matrix[i] = make([]float64, maxGoals)
		for j := 0; j < maxGoals; j++ {
			matrix[i][j] = homeProbs[i] * awayProbs[j]
		}
	}
	return matrix
}

// dixonColesCorrection adjusts the four low-score cells where independent
// Poisson margins underestimate the draw mass, then renormalizes
func dixonColesCorrection(matrix [][]float64, homeExpected, awayExpected, rho float64) [][]float64 {
	if len(matrix) > 2 && len(matrix[0]) > 2 {
		matrix[0][0] *= calculateTau(0, 0, homeExpected, awayExpected, rho)
		matrix[1][0] *= calculateTau(1, 0, homeExpected, awayExpected, rho)
		matrix[0][1] *= calculateTau(0, 1, homeExpected, awayExpected, rho)
		matrix[1][1] *= calculateTau(1, 1, homeExpected, awayExpected, rho)
	}
	return renormalizeMatrix(matrix)
}

// calculateTau computes the Dixon-Coles correction factor for specific scorelines
func calculateTau(homeGoals, awayGoals int, lambda1, lambda2, rho float64) float64 {
	switch {
	case homeGoals == 0 && awayGoals == 0:
		return 1 - lambda1*lambda2*rho
	case homeGoals == 0 && awayGoals == 1:
		return 1 + lambda1*rho
	case homeGoals == 1 && awayGoals == 0:
		return 1 + lambda2*rho
	case homeGoals == 1 && awayGoals == 1:
		return 1 - rho
	}
	return 1.0
}

// renormalizeMatrix ensures all probabilities sum to 1 after correction
func renormalizeMatrix(matrix [][]float64) [][]float64 {
	total := 0.0
	for i := range matrix {
		for j := range matrix[i] {
			total += matrix[i][j]
		}
	}
	if total > 0 {
		for i := range matrix {
			for j := range matrix[i] {
				matrix[i][j] /= total
			}
		}
	}
	return matrix
}

// matchOutcomeProbabilities sums the lower triangle, diagonal and upper
// triangle into home win, draw and away win mass
func matchOutcomeProbabilities(matrix [][]float64) (homeWin, draw, awayWin float64) {
	for i := range matrix {
		for j := range matrix[i] {
			switch {
			case i > j:
				homeWin += matrix[i][j]
			case i == j:
				draw += matrix[i][j]
			default:
				awayWin += matrix[i][j]
			}
		}
	}
	return homeWin, draw, awayWin
}
