package model

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Enrichment failure sentinels. Callers branch with errors.Is and keep the
// batch going; neither aborts a run.
var (
	ErrIncompleteReplay  = errors.New("replay is incomplete")
	ErrPlayerNotInReplay = errors.New("player not present in replay")
)

// VehicleLookup resolves vehicle catalog metadata.
type VehicleLookup interface {
	Lookup(id VehicleID) (VehicleMeta, error)
}

// MapLookup resolves battle arena metadata.
type MapLookup interface {
	Lookup(id MapID) (MapMeta, error)
}

// EnrichedReplay is a Replay rebased onto the analyzed player's perspective,
// with derived battle facts and catalog metadata attached. Rosters here are
// always relative to Player: Allies excludes Player and PlatMate.
type EnrichedReplay struct {
	Replay

	Player     AccountID
	PlatMate   AccountID // 0 when the player battled without a platoon
	BattleTier int
	TopTier    bool
	MapName    string
}

// Enrich builds an EnrichedReplay from a raw replay. It runs once per replay
// and is pure given its inputs: the raw replay is not modified.
//
// requested selects the perspective account; 0 means the replay's recording
// protagonist. A requested player found on the enemy roster swaps the rosters
// and flips the result so "allies" always means the analyzed player's side.
//
// Missing vehicle or map catalog entries are logged and tolerated; an
// incomplete replay or an absent perspective player is an error.
func Enrich(r *Replay, vehicles VehicleLookup, maps MapLookup, requested AccountID, logger zerolog.Logger) (*EnrichedReplay, error) {
	if !r.Complete {
		return nil, fmt.Errorf("map %d: %w", r.MapID, ErrIncompleteReplay)
	}

	er := &EnrichedReplay{Replay: *r, MapName: "Unknown map"}

	// Defensive copy, dropping roster ids with no performance record so a
	// malformed upload cannot surface phantom players in aggregates.
	er.Allies = keepKnown(r.Allies, r.Performances)
	er.Enemies = keepKnown(r.Enemies, r.Performances)

	// The performance map is shared with the raw replay; re-point it at fresh
	// records so vehicle/stats attachment never mutates the parsed input.
	perf := make(map[AccountID]*PlayerPerformance, len(r.Performances))
	for id, p := range r.Performances {
		cp := *p
		perf[id] = &cp
	}
	er.Performances = perf

	for id, p := range er.Performances {
		meta, err := vehicles.Lookup(p.VehicleID)
		if err != nil {
			logger.Warn().Uint64("account", uint64(id)).Int("vehicle", int(p.VehicleID)).
				Msg("vehicle not in catalog")
			continue
		}
		p.Vehicle = meta
		p.VehicleOK = true
	}

	if err := er.resolvePlayer(requested); err != nil {
		return nil, err
	}

	for _, p := range er.Performances {
		if p.VehicleOK && p.Vehicle.Tier > er.BattleTier {
			er.BattleTier = p.Vehicle.Tier
		}
	}
	if own, ok := er.Performances[er.Player]; ok && own.VehicleOK {
		er.TopTier = own.Vehicle.Tier == er.BattleTier
	}

	er.extractPlatMate()

	if m, err := maps.Lookup(er.MapID); err != nil {
		logger.Warn().Int("map", int(er.MapID)).Msg("map not in catalog")
	} else {
		er.MapName = m.Name
	}

	return er, nil
}

// resolvePlayer picks the perspective account and reorients rosters/result
// when the requested player fought on the enemy side.
func (er *EnrichedReplay) resolvePlayer(requested AccountID) error {
	player := er.Protagonist
	if requested > 0 {
		switch {
		case contains(er.Allies, requested):
			player = requested
		case contains(er.Enemies, requested):
			player = requested
			er.Allies, er.Enemies = er.Enemies, er.Allies
			er.Result = er.Result.Flip()
		}
	}
	if _, ok := er.Performances[player]; !ok {
		return fmt.Errorf("account %d: %w", player, ErrPlayerNotInReplay)
	}
	er.Player = player
	return nil
}

// extractPlatMate finds the co-platooned ally (shared non-zero squad index)
// and removes both the player and the mate from the generic allies list so
// team-level aggregates do not double count them.
func (er *EnrichedReplay) extractPlatMate() {
	own, ok := er.Performances[er.Player]
	if ok && own.SquadIndex > 0 {
		for _, id := range er.Allies {
			if id == er.Player {
				continue
			}
			if p, ok := er.Performances[id]; ok && p.SquadIndex == own.SquadIndex {
				er.PlatMate = id
				break
			}
		}
	}

	allies := er.Allies[:0:0]
	for _, id := range er.Allies {
		if id == er.Player || (er.PlatMate != 0 && id == er.PlatMate) {
			continue
		}
		allies = append(allies, id)
	}
	er.Allies = allies
}

// Performance returns the analyzed player's own battle record.
func (er *EnrichedReplay) Performance() *PlayerPerformance {
	return er.Performances[er.Player]
}

func keepKnown(ids []AccountID, perf map[AccountID]*PlayerPerformance) []AccountID {
	out := make([]AccountID, 0, len(ids))
	for _, id := range ids {
		if _, ok := perf[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []AccountID, want AccountID) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
