package model

// AccountID identifies a player account. The hosting region is encoded in the
// numeric range of the id, so it can be derived without a directory lookup.
type AccountID uint64

// VehicleID identifies a vehicle in the tankopedia catalog.
type VehicleID int

// MapID identifies a battle arena in the map catalog.
type MapID int

// Region is the API realm an account lives on.
type Region int

const (
	RegionUnknown Region = iota
	RegionRU
	RegionEU
	RegionNA
	RegionAsia
	RegionChina
)

func (r Region) String() string {
	switch r {
	case RegionRU:
		return "ru"
	case RegionEU:
		return "eu"
	case RegionNA:
		return "com"
	case RegionAsia:
		return "asia"
	case RegionChina:
		return "cn"
	default:
		return "?"
	}
}

// RegionFromAccount maps an account id to its hosting region using the
// published id allocation ranges.
func RegionFromAccount(id AccountID) Region {
	switch {
	case id == 0:
		return RegionUnknown
	case id < 500_000_000:
		return RegionRU
	case id < 1_000_000_000:
		return RegionEU
	case id < 2_000_000_000:
		return RegionNA
	case id < 3_100_000_000:
		return RegionAsia
	default:
		return RegionChina
	}
}

// BattleResult is the outcome of a battle from the analyzed player's side.
type BattleResult int

const (
	ResultLoss BattleResult = 0
	ResultWin  BattleResult = 1
	ResultDraw BattleResult = 2
)

func (b BattleResult) String() string {
	switch b {
	case ResultWin:
		return "Win"
	case ResultLoss:
		return "Loss"
	case ResultDraw:
		return "Draw"
	default:
		return "?"
	}
}

// Flip swaps win and loss. Draws are side-independent.
func (b BattleResult) Flip() BattleResult {
	switch b {
	case ResultWin:
		return ResultLoss
	case ResultLoss:
		return ResultWin
	default:
		return b
	}
}

// VehicleClass is the tankopedia vehicle type.
type VehicleClass int

const (
	ClassUnknown VehicleClass = iota
	ClassLight
	ClassMedium
	ClassHeavy
	ClassTD
)

func (c VehicleClass) String() string {
	switch c {
	case ClassLight:
		return "LT"
	case ClassMedium:
		return "MT"
	case ClassHeavy:
		return "HT"
	case ClassTD:
		return "TD"
	default:
		return "?"
	}
}

// ParseVehicleClass maps a tankopedia type tag to a VehicleClass.
func ParseVehicleClass(s string) VehicleClass {
	switch s {
	case "lightTank", "LT", "lt":
		return ClassLight
	case "mediumTank", "MT", "mt":
		return ClassMedium
	case "heavyTank", "HT", "ht":
		return ClassHeavy
	case "AT-SPG", "TD", "td":
		return ClassTD
	default:
		return ClassUnknown
	}
}

// VehicleMeta is the catalog record joined onto each player during enrichment.
type VehicleMeta struct {
	ID      VehicleID    `json:"tank_id"`
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Tier    int          `json:"tier"`
	Nation  string       `json:"nation"`
	Premium bool         `json:"is_premium"`
	Class   VehicleClass `json:"-"`
}

// MapMeta is the catalog record for a battle arena.
type MapMeta struct {
	ID   MapID  `json:"map_id"`
	Name string `json:"name"`
}

// PlayerStats is the resolved remote statistic for one stats query. The zero
// value is the "no data found" sentinel, so aggregation never branches on nil.
type PlayerStats struct {
	Battles   int     `json:"battles"`
	WinRate   float64 `json:"win_rate"`
	AvgDamage float64 `json:"avg_damage"`
}

// PlayerPerformance is one player's in-battle record. Vehicle and Stats are
// empty on a raw replay; enrichment and the cache fill step populate them.
type PlayerPerformance struct {
	VehicleID      VehicleID `json:"vehicle_id"`
	SquadIndex     int       `json:"squad_index"`
	DamageDealt    int       `json:"damage_dealt"`
	DamageAssisted int       `json:"damage_assisted"`
	DamageReceived int       `json:"damage_received"`
	Kills          int       `json:"kills"`
	Spotted        int       `json:"spotted"`
	Shots          int       `json:"shots"`
	Hits           int       `json:"hits"`
	Credits        int       `json:"credits"`
	XP             int       `json:"exp"`
	Survived       bool      `json:"survived"`

	Vehicle   VehicleMeta `json:"-"`
	VehicleOK bool        `json:"-"`
	Stats     PlayerStats `json:"-"`
}

// HitRate is the player's shot accuracy for the battle, in percent.
func (p *PlayerPerformance) HitRate() float64 {
	if p.Shots == 0 {
		return 0
	}
	return float64(p.Hits) / float64(p.Shots) * 100
}

// Replay is one parsed battle record. Immutable once parsed; enrichment works
// on its own copy of the rosters.
type Replay struct {
	Complete    bool         `json:"complete"`
	MapID       MapID        `json:"map_id"`
	BattleMode  string       `json:"battle_mode"`
	Duration    float64      `json:"battle_duration"`
	Result      BattleResult `json:"result"`
	Protagonist AccountID    `json:"protagonist"`

	Allies  []AccountID `json:"allies"`
	Enemies []AccountID `json:"enemies"`

	Performances map[AccountID]*PlayerPerformance `json:"players"`
}
