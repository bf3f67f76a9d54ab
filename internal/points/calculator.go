// Package points scores places for the gamification ledger. A place's score is
// computed once when an admin scores the place and stored on it; crediting a user
// later reads the stored value.
package points

import "math"

const (
	distanceWeight   = 0.5
	difficultyWeight = 0.25
	popularityWeight = 0.5

	// popularity is rated on a 0-5 scale
	maxPopularity = 5.0
)

// Factors are the inputs of Calculate. Distances are in meters.
type Factors struct {
	BasePoints       float64
	DifficultyLevel  float64
	Distance         float64
	MaxDistance      float64
	Popularity       float64
	UrbanCenterRange float64
}

// DefaultFactors returns the neutral inputs: scoring them yields BasePoints.
func DefaultFactors() Factors {
	return Factors{
		BasePoints:      100,
		DifficultyLevel: 1,
	}
}

// Calculate returns round(base * (1 + distance + difficulty + popularity)).
func Calculate(f Factors) int {
	total := 1 + DistanceFactor(f.Distance, f.MaxDistance, f.UrbanCenterRange) +
		DifficultyFactor(f.DifficultyLevel) +
		PopularityFactor(f.Popularity)

	return int(math.Round(f.BasePoints * total))
}

// DistanceFactor rewards places far from the town center. Inside the urban center
// range the factor is negative, down to -0.5 at the center itself.
func DistanceFactor(distance, maxDistance, urbanCenterRange float64) float64 {
	if maxDistance == 0 || distance == 0 {
		return 0
	}
	if urbanCenterRange == 0 {
		return (distance / maxDistance) * distanceWeight
	}
	if distance <= urbanCenterRange {
		return (distance/urbanCenterRange)*distanceWeight - distanceWeight
	}
	if maxDistance <= urbanCenterRange {
		// every place outside the center is at the far edge
		return distanceWeight
	}
	return ((distance - urbanCenterRange) / (maxDistance - urbanCenterRange)) * distanceWeight
}

// DifficultyFactor is (level - 0.25) * 0.25 above level 1. The formula is kept
// as shipped; scored places depend on it.
func DifficultyFactor(difficultyLevel float64) float64 {
	if difficultyLevel <= 1 {
		return 0
	}
	return (difficultyLevel - 0.25) * difficultyWeight
}

// PopularityFactor favours less popular places. Zero popularity carries no signal.
func PopularityFactor(popularity float64) float64 {
	if popularity <= 0 {
		return 0
	}
	return ((maxPopularity - popularity) / maxPopularity) * popularityWeight
}
