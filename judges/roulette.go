package judges

import (
	"math"
	"math/rand"
)

// sameRoomPenalty is added to the usage count of a judge whose school already
// has a judge in the room, which makes picking them very unlikely.
const sameRoomPenalty = 5

// roulette returns a position in candidates, drawn with probability
// proportional to exp(-usage) of each candidate judge.
func roulette(rng *rand.Rand, candidates []int, usage []int, schoolKeys []string, roomSchools map[string]bool) int {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, j := range candidates {
		u := usage[j]
		if roomSchools[schoolKeys[j]] {
			u += sameRoomPenalty
		}
		weights[i] = math.Exp(-float64(u))
		total += weights[i]
	}

	draw := rng.Float64()
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w / total
		if cumulative >= draw {
			return i
		}
	}
	// rounding can leave the last cumulative value just below the draw
	return len(candidates) - 1
}
