package models

// RoomData is the per-room, per-round match seed handed to the match client.
type RoomData struct {
	TeamDataList []TeamData `json:"teamDataList"`
}

type TeamData struct {
	Name           string       `json:"name"`
	School         string       `json:"school"`
	PlayerDataList []PlayerData `json:"playerDataList"`
	RecordDataList []RecordData `json:"recordDataList"`
}
