package model

import "strings"

// TeamFilter selects which side of the battle a field looks at, relative to
// the analyzed player.
type TeamFilter int

const (
	TeamSelf TeamFilter = iota
	TeamAllies
	TeamEnemies
	TeamAll
	TeamInvalid
)

// GroupFilter narrows a team selection to a squad/class/tier subset.
type GroupFilter int

const (
	GroupDefault GroupFilter = iota
	GroupAll
	GroupSolo
	GroupPlatoon
	GroupLight
	GroupMedium
	GroupHeavy
	GroupTD
	GroupTop
	GroupBottom
	GroupInvalid
)

// PlayerFilter is a fixed (team, group) pair. Composition is a closed
// enumeration, not an algebra: every combination has hand-specified
// semantics and anything malformed selects nobody.
type PlayerFilter struct {
	Team  TeamFilter
	Group GroupFilter
}

// ParsePlayerFilter parses "team" or "team-group" filter specs, e.g.
// "allies", "enemies-top", "all-plat". An empty spec means the player
// themselves.
func ParsePlayerFilter(spec string) PlayerFilter {
	team, group, _ := strings.Cut(spec, "-")

	f := PlayerFilter{Team: TeamInvalid, Group: GroupInvalid}
	switch team {
	case "", "player", "self":
		f.Team = TeamSelf
	case "allies":
		f.Team = TeamAllies
	case "enemies":
		f.Team = TeamEnemies
	case "all":
		f.Team = TeamAll
	}
	switch group {
	case "", "default":
		f.Group = GroupDefault
	case "all":
		f.Group = GroupAll
	case "solo":
		f.Group = GroupSolo
	case "plat", "platoon":
		f.Group = GroupPlatoon
	case "lt", "light":
		f.Group = GroupLight
	case "mt", "medium":
		f.Group = GroupMedium
	case "ht", "heavy":
		f.Group = GroupHeavy
	case "td":
		f.Group = GroupTD
	case "top":
		f.Group = GroupTop
	case "bottom":
		f.Group = GroupBottom
	}
	return f
}

// Valid reports whether both halves of the filter parsed.
func (f PlayerFilter) Valid() bool {
	return f.Team != TeamInvalid && f.Group != GroupInvalid
}

func (f PlayerFilter) String() string {
	team := [...]string{"player", "allies", "enemies", "all", "?"}[f.Team]
	group := [...]string{"default", "all", "solo", "plat", "lt", "mt", "ht", "td", "top", "bottom", "?"}[f.Group]
	if f.Group == GroupDefault {
		return team
	}
	return team + "-" + group
}

// Players returns the account ids on the enriched replay that satisfy the
// filter, in roster order, without duplicates. Ids never stray outside the
// replay's own rosters; malformed filters return an empty list so report
// generation stays total over every replay.
func (f PlayerFilter) Players(r *EnrichedReplay) []AccountID {
	if !f.Valid() {
		return nil
	}

	var base []AccountID
	switch f.Team {
	case TeamSelf:
		base = []AccountID{r.Player}
	case TeamAllies:
		base = append(base, r.Allies...)
	case TeamEnemies:
		base = append(base, r.Enemies...)
	case TeamAll:
		base = append(base, r.Player)
		if r.PlatMate != 0 {
			base = append(base, r.PlatMate)
		}
		base = append(base, r.Allies...)
		base = append(base, r.Enemies...)
	}

	switch f.Group {
	case GroupDefault:
		return dedup(base)
	case GroupAll:
		// The enriched allies list excludes the platoon mate; "all" puts
		// them back for team-level totals.
		if f.Team == TeamAllies && r.PlatMate != 0 {
			base = append([]AccountID{r.PlatMate}, base...)
		}
		return dedup(base)
	case GroupSolo:
		return dedup(r.keepSquad(base, false))
	case GroupPlatoon:
		if f.Team == TeamSelf {
			if r.PlatMate == 0 {
				return nil
			}
			return []AccountID{r.Player, r.PlatMate}
		}
		return dedup(r.keepSquad(base, true))
	case GroupLight:
		return dedup(r.keepClass(base, ClassLight))
	case GroupMedium:
		return dedup(r.keepClass(base, ClassMedium))
	case GroupHeavy:
		return dedup(r.keepClass(base, ClassHeavy))
	case GroupTD:
		return dedup(r.keepClass(base, ClassTD))
	case GroupTop:
		return dedup(r.keepTier(base, true))
	case GroupBottom:
		return dedup(r.keepTier(base, false))
	}
	return nil
}

func (r *EnrichedReplay) keepSquad(ids []AccountID, platooned bool) []AccountID {
	out := ids[:0:0]
	for _, id := range ids {
		p, ok := r.Performances[id]
		if !ok {
			continue
		}
		if (p.SquadIndex > 0) == platooned {
			out = append(out, id)
		}
	}
	return out
}

func (r *EnrichedReplay) keepClass(ids []AccountID, class VehicleClass) []AccountID {
	out := ids[:0:0]
	for _, id := range ids {
		p, ok := r.Performances[id]
		if !ok || !p.VehicleOK {
			continue
		}
		if p.Vehicle.Class == class {
			out = append(out, id)
		}
	}
	return out
}

func (r *EnrichedReplay) keepTier(ids []AccountID, top bool) []AccountID {
	out := ids[:0:0]
	for _, id := range ids {
		p, ok := r.Performances[id]
		if !ok || !p.VehicleOK {
			continue
		}
		if (p.Vehicle.Tier == r.BattleTier) == top {
			out = append(out, id)
		}
	}
	return out
}

func dedup(ids []AccountID) []AccountID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[AccountID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
