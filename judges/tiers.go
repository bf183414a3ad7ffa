package judges

import (
	"math/rand"

	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/utils"
)

// Tier is one named judge-allocation strategy of the cascade.
type Tier struct {
	Name string
	// Attempts is the number of randomized passes; zero means the allocator's max attempts.
	Attempts int
	// AvoidTeamSchools drops judges from the schools of teams seated in the room.
	AvoidTeamSchools bool
	// OncePerRound drops judges already seated in another room of the same round.
	OncePerRound bool
	// Refill reuses the candidate pool when a room needs more judges than it holds.
	Refill bool
}

var (
	TierStrict        = Tier{Name: "strict", AvoidTeamSchools: true, OncePerRound: true}
	TierRelaxedSchool = Tier{Name: "relaxed-school", Attempts: 1, OncePerRound: true}
	TierRelaxedRepeat = Tier{Name: "relaxed-repeat", Attempts: 1, Refill: true}
)

// DefaultTiers is the strict -> relaxed-school -> relaxed-repeat cascade.
func DefaultTiers() []Tier {
	return []Tier{TierStrict, TierRelaxedSchool, TierRelaxedRepeat}
}

type roster struct {
	judges     []models.Judge
	schoolKeys []string
}

func newRoster(judges []models.Judge) roster {
	keys := make([]string, len(judges))
	for i, j := range judges {
		keys[i] = utils.NormalizeName(j.School)
	}
	return roster{judges: judges, schoolKeys: keys}
}

// run makes one full pass over every round and room. Usage counters start at
// zero for the pass. It reports false as soon as a room cannot be filled.
func (t Tier) run(pairings models.PairingTable, ros roster, perRoom int, rng *rand.Rand) (models.JudgeTable, bool) {
	n := len(ros.judges)
	usage := make([]int, n)
	table := make(models.JudgeTable, pairings.Rounds())

	for r := range pairings {
		usedThisRound := make([]bool, n)
		table[r] = make([][]models.Seat, pairings.Rooms())

		for room := range table[r] {
			teamSchools := make(map[string]bool, models.NumSides)
			for _, school := range pairings.RoomSchools(r, room) {
				teamSchools[utils.NormalizeName(school)] = true
			}

			pool := make([]int, 0, n)
			for j := 0; j < n; j++ {
				if t.OncePerRound && usedThisRound[j] {
					continue
				}
				if t.AvoidTeamSchools && teamSchools[ros.schoolKeys[j]] {
					continue
				}
				pool = append(pool, j)
			}
			if len(pool) == 0 || (len(pool) < perRoom && !t.Refill) {
				return nil, false
			}

			table[r][room] = drawRoom(rng, pool, perRoom, usage, usedThisRound, ros)
		}
	}
	return table, true
}

func drawRoom(rng *rand.Rand, pool []int, perRoom int, usage []int, usedThisRound []bool, ros roster) []models.Seat {
	seats := make([]models.Seat, 0, perRoom)
	roomSchools := make(map[string]bool, perRoom)
	local := append([]int(nil), pool...)

	for len(seats) < perRoom {
		if len(local) == 0 {
			local = append(local, pool...)
		}
		i := roulette(rng, local, usage, ros.schoolKeys, roomSchools)
		j := local[i]
		local = append(local[:i], local[i+1:]...)

		usage[j]++
		usedThisRound[j] = true
		roomSchools[ros.schoolKeys[j]] = true
		seats = append(seats, models.Seat{Name: ros.judges[j].Name, School: ros.judges[j].School})
	}
	return seats
}
