package models

import "time"

const ByeName = "None"

// Seat is a (name, school) pair placed in a pairing or judge slot.
type Seat struct {
	Name   string `json:"name"`
	School string `json:"school"`
}

// ByeSeat fills a side when the roster runs out of teams.
var ByeSeat = Seat{Name: ByeName, School: ByeName}

func (s Seat) IsBye() bool {
	return s == ByeSeat
}

// RoundPairing is indexed by side, then room.
type RoundPairing [NumSides][]Seat

// PairingTable is indexed by round.
type PairingTable []RoundPairing

func (t PairingTable) Rounds() int {
	return len(t)
}

func (t PairingTable) Rooms() int {
	if len(t) == 0 {
		return 0
	}
	return len(t[0][SideReporter])
}

// RoomSchools returns the schools of the non-bye teams seated in a room.
func (t PairingTable) RoomSchools(round, room int) []string {
	schools := make([]string, 0, NumSides)
	for _, side := range Sides {
		seat := t[round][side][room]
		if seat.IsBye() {
			continue
		}
		schools = append(schools, seat.School)
	}
	return schools
}

// RoomTeams returns the seats of a room in side order, byes included.
func (t PairingTable) RoomTeams(round, room int) [NumSides]Seat {
	var seats [NumSides]Seat
	for _, side := range Sides {
		seats[side] = t[round][side][room]
	}
	return seats
}

// JudgeTable is indexed by round, then room.
type JudgeTable [][][]Seat

// Schedule is one complete generation of both tables.
type Schedule struct {
	Pairings    PairingTable `json:"pairings"`
	Judges      JudgeTable   `json:"judges"`
	JudgeTier   string       `json:"judge_tier,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}
