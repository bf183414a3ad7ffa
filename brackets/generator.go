package brackets

import (
	"fmt"
	"math/rand"

	"github.com/Dosada05/debate-tournament/models"
)

type GeneratePairingsParams struct {
	Teams     []models.Team
	RoundNum  int
	RoomTotal int
	// Rand drives every shuffle; pass a seeded source for reproducible tables.
	Rand *rand.Rand
}

type PairingGenerator interface {
	GeneratePairings(params GeneratePairingsParams) models.PairingTable

	GetName() string
}

// NewPairingGenerator selects a generator by name; an empty name means the rotation generator.
func NewPairingGenerator(name string) (PairingGenerator, error) {
	switch name {
	case "", RotationName:
		return NewRotationGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported pairing generator '%s'", name)
	}
}
