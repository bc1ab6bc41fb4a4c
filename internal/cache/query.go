package cache

import (
	"fmt"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

// StatsType is the granularity of remote statistics attached to players.
type StatsType int

const (
	// StatsAccount attaches account-wide career statistics.
	StatsAccount StatsType = iota
	// StatsTier attaches statistics aggregated over the player's battle tier.
	StatsTier
	// StatsVehicle attaches statistics for the vehicle the player drove.
	StatsVehicle
)

func (t StatsType) String() string {
	switch t {
	case StatsAccount:
		return "account"
	case StatsTier:
		return "tier"
	case StatsVehicle:
		return "vehicle"
	default:
		return "?"
	}
}

// ParseStatsType parses a granularity name from configuration.
func ParseStatsType(s string) (StatsType, error) {
	switch s {
	case "", "account":
		return StatsAccount, nil
	case "tier":
		return StatsTier, nil
	case "vehicle", "tank":
		return StatsVehicle, nil
	default:
		return StatsAccount, fmt.Errorf("unknown stats type %q", s)
	}
}

// StatsQuery identifies one requested statistic slice. Tier is zero unless
// the granularity is per-tier; Vehicle is zero unless per-vehicle, so two
// queries for the same slice always collapse to the same key.
type StatsQuery struct {
	Type    StatsType
	Account model.AccountID
	Tier    int
	Vehicle model.VehicleID
}

// AccountQuery builds an account-wide query.
func AccountQuery(id model.AccountID) StatsQuery {
	return StatsQuery{Type: StatsAccount, Account: id}
}

// TierQuery builds a per-tier query.
func TierQuery(id model.AccountID, tier int) StatsQuery {
	return StatsQuery{Type: StatsTier, Account: id, Tier: tier}
}

// VehicleQuery builds a per-vehicle query.
func VehicleQuery(id model.AccountID, vehicle model.VehicleID) StatsQuery {
	return StatsQuery{Type: StatsVehicle, Account: id, Vehicle: vehicle}
}

// Key encodes account id, tier and vehicle id as a fixed-width composite
// string, directly usable as a cache index.
func (q StatsQuery) Key() string {
	return fmt.Sprintf("%010d:%02d:%06d", q.Account, q.Tier, q.Vehicle)
}

func (q StatsQuery) String() string {
	return fmt.Sprintf("%s:%s", q.Type, q.Key())
}
