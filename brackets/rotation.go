package brackets

import (
	"math/rand"

	"github.com/Dosada05/debate-tournament/models"
)

const RotationName = "Rotation"

type RotationGenerator struct{}

func NewRotationGenerator() PairingGenerator {
	return &RotationGenerator{}
}

func (g *RotationGenerator) GetName() string {
	return RotationName
}

// GeneratePairings seats teams for every round.
//
// The team list is shuffled once. Each round cuts the list into four
// consecutive chunks of RoomTotal seats, one per side, padding with byes,
// and shuffles every chunk on its own. Between rounds the whole list is
// rotated left by RoomTotal+1 so cross-side pairings do not repeat.
// Teams beyond 4*RoomTotal never get a seat.
func (g *RotationGenerator) GeneratePairings(params GeneratePairingsParams) models.PairingTable {
	if params.RoomTotal <= 0 || params.RoundNum <= 0 {
		return models.PairingTable{}
	}
	rng := params.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	order := make([]models.Seat, len(params.Teams))
	for i, team := range params.Teams {
		order[i] = models.Seat{Name: team.Name, School: team.School}
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	table := make(models.PairingTable, params.RoundNum)
	for r := 0; r < params.RoundNum; r++ {
		for _, side := range models.Sides {
			chunk := sideChunk(order, int(side), params.RoomTotal)
			rng.Shuffle(len(chunk), func(i, j int) { chunk[i], chunk[j] = chunk[j], chunk[i] })
			table[r][side] = chunk
		}
		order = rotateLeft(order, params.RoomTotal+1)
	}
	return table
}

// sideChunk copies the seats of one side, padded with byes to roomTotal.
func sideChunk(order []models.Seat, side, roomTotal int) []models.Seat {
	chunk := make([]models.Seat, roomTotal)
	start := side * roomTotal
	for room := 0; room < roomTotal; room++ {
		if idx := start + room; idx < len(order) {
			chunk[room] = order[idx]
		} else {
			chunk[room] = models.ByeSeat
		}
	}
	return chunk
}

// rotateLeft returns a new slice rotated left by k, wrapping around.
func rotateLeft(order []models.Seat, k int) []models.Seat {
	n := len(order)
	if n == 0 {
		return order
	}
	k %= n
	rotated := make([]models.Seat, 0, n)
	rotated = append(rotated, order[k:]...)
	return append(rotated, order[:k]...)
}
