// Package cache holds the two-tier in-memory stats cache: a per-account
// network memo filled by concurrent fetch workers, and a query-level result
// cache resolved once against the memo after all fetching is done.
//
// The network memo is keyed coarser (by account) than consumers need (by
// account+tier or account+vehicle); many fine-grained results are derived
// from one coarse fetch, which is what keeps the round-trip count low.
package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vporokh/go-tank-metrics/internal/model"
	"github.com/vporokh/go-tank-metrics/internal/wgapi"
)

// StatsAPI is the remote stats capability the cache consumes. Both calls may
// return (nil, nil) — "no stats", not an error.
type StatsAPI interface {
	FetchAccountStats(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.PlayerStats, error)
	FetchVehicleStats(ctx context.Context, id model.AccountID) ([]wgapi.VehicleStatsEntry, error)
}

// TierIndex resolves which catalog vehicles sit at a tier. Needed only for
// per-tier granularity, where tier slices are derived from per-vehicle rows.
type TierIndex interface {
	VehiclesByTier(tier int) []model.VehicleID
}

// Counters summarizes one worker's share of the fetch work.
type Counters struct {
	Accounts int // account ids resolved by this worker
	Calls    int // network round trips issued
	Errors   int // failed round trips (ids involved stay at the zero sentinel)
}

// Merge folds other into c.
func (c *Counters) Merge(other Counters) {
	c.Accounts += other.Accounts
	c.Calls += other.Calls
	c.Errors += other.Errors
}

// Cache is the stats cache. Safe for concurrent use by any number of fetch
// workers and query producers; Fill and GetStats are for the sequential
// aggregation phase after every worker has joined.
type Cache struct {
	api       StatsAPI
	statsType StatsType
	tiers     TierIndex
	logger    zerolog.Logger

	mu       sync.Mutex
	inFlight map[model.AccountID]struct{}
	accounts map[model.AccountID]*model.PlayerStats     // entry present = fetched; nil = no data
	tables   map[model.AccountID][]wgapi.VehicleStatsEntry // entry present = fetched; nil = no data

	qmu     sync.Mutex
	queries map[string]StatsQuery

	results map[string]model.PlayerStats
}

// New creates a cache for the given granularity. tiers may be nil unless the
// granularity is StatsTier.
func New(api StatsAPI, statsType StatsType, tiers TierIndex, logger zerolog.Logger) *Cache {
	return &Cache{
		api:       api,
		statsType: statsType,
		tiers:     tiers,
		logger:    logger,
		inFlight:  map[model.AccountID]struct{}{},
		accounts:  map[model.AccountID]*model.PlayerStats{},
		tables:    map[model.AccountID][]wgapi.VehicleStatsEntry{},
		queries:   map[string]StatsQuery{},
		results:   map[string]model.PlayerStats{},
	}
}

// StatsType returns the configured granularity.
func (c *Cache) StatsType() StatsType { return c.statsType }

// queryFor builds the query for one player on one replay under the
// configured granularity.
func (c *Cache) queryFor(r *model.EnrichedReplay, id model.AccountID) StatsQuery {
	switch c.statsType {
	case StatsTier:
		return TierQuery(id, r.BattleTier)
	case StatsVehicle:
		if p, ok := r.Performances[id]; ok {
			return VehicleQuery(id, p.VehicleID)
		}
		return VehicleQuery(id, 0)
	default:
		return AccountQuery(id)
	}
}

// RegisterReplay records the stats queries an enriched replay will need and
// returns the account ids that must be fed to the fetch workers. Duplicate
// queries across replays collapse in the query set.
func (c *Cache) RegisterReplay(r *model.EnrichedReplay) []model.AccountID {
	ids := make([]model.AccountID, 0, len(r.Performances))
	c.qmu.Lock()
	for id := range r.Performances {
		q := c.queryFor(r, id)
		if _, ok := c.queries[q.Key()]; !ok {
			c.queries[q.Key()] = q
		}
		ids = append(ids, id)
	}
	c.qmu.Unlock()
	return ids
}

// QueryCount reports the number of distinct queries registered.
func (c *Cache) QueryCount() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queries)
}

// claim marks an account id as in flight. Returns false when the id is
// already fetched or claimed by another worker — the write-once invariant
// that guarantees at most one network fetch per account id.
func (c *Cache) claim(id model.AccountID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inFlight[id]; ok {
		return false
	}
	if c.statsType == StatsAccount {
		if _, ok := c.accounts[id]; ok {
			return false
		}
	} else {
		if _, ok := c.tables[id]; ok {
			return false
		}
	}
	c.inFlight[id] = struct{}{}
	return true
}

// Worker drains account ids from in until it closes, fetching statistics and
// merging them into the memo. Any number of workers may run concurrently.
func (c *Cache) Worker(ctx context.Context, in <-chan model.AccountID) Counters {
	if c.statsType == StatsAccount {
		return c.accountWorker(ctx, in)
	}
	return c.vehicleWorker(ctx, in)
}

// accountWorker batches claimed ids by region and flushes a batch when it
// reaches the API limit or the queue is exhausted.
func (c *Cache) accountWorker(ctx context.Context, in <-chan model.AccountID) Counters {
	var counters Counters
	batches := map[model.Region][]model.AccountID{}

	flush := func(region model.Region) {
		ids := batches[region]
		if len(ids) == 0 {
			return
		}
		batches[region] = nil
		counters.Calls++

		stats, err := c.api.FetchAccountStats(ctx, ids)
		if err != nil {
			counters.Errors++
			c.logger.Warn().Err(err).Str("region", region.String()).Int("batch", len(ids)).
				Msg("account stats fetch failed")
		}

		c.mu.Lock()
		for _, id := range ids {
			c.accounts[id] = stats[id] // nil when absent or the call failed
			delete(c.inFlight, id)
		}
		c.mu.Unlock()
		counters.Accounts += len(ids)
	}

	for id := range in {
		if !c.claim(id) {
			continue
		}
		region := model.RegionFromAccount(id)
		batches[region] = append(batches[region], id)
		if len(batches[region]) >= wgapi.MaxBatchSize {
			flush(region)
		}
	}
	for region := range batches {
		flush(region)
	}
	return counters
}

// vehicleWorker fetches one account's full per-vehicle table per round trip;
// tier and vehicle slices are derived from the held table at fill time.
func (c *Cache) vehicleWorker(ctx context.Context, in <-chan model.AccountID) Counters {
	var counters Counters
	for id := range in {
		if !c.claim(id) {
			continue
		}
		counters.Calls++

		table, err := c.api.FetchVehicleStats(ctx, id)
		if err != nil {
			counters.Errors++
			c.logger.Warn().Err(err).Uint64("account", uint64(id)).
				Msg("vehicle stats fetch failed")
		}

		c.mu.Lock()
		c.tables[id] = table // nil when the account has no table or the call failed
		delete(c.inFlight, id)
		c.mu.Unlock()
		counters.Accounts++
	}
	return counters
}

// Fill resolves every registered query against the memo exactly once,
// producing the final key -> stats map used at aggregation time. Must run
// only after all workers have joined; it is strictly sequential.
func (c *Cache) Fill() {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	for key, q := range c.queries {
		c.results[key] = c.resolve(q)
	}
}

func (c *Cache) resolve(q StatsQuery) model.PlayerStats {
	switch q.Type {
	case StatsAccount:
		if s := c.accounts[q.Account]; s != nil {
			return *s
		}
		return model.PlayerStats{}
	case StatsVehicle:
		for _, e := range c.tables[q.Account] {
			if e.TankID == q.Vehicle {
				return e.Stats()
			}
		}
		return model.PlayerStats{}
	case StatsTier:
		return c.tierSlice(q.Account, q.Tier)
	default:
		return model.PlayerStats{}
	}
}

// tierSlice aggregates an account's per-vehicle rows over the catalog
// vehicles at one tier.
func (c *Cache) tierSlice(id model.AccountID, tier int) model.PlayerStats {
	if c.tiers == nil {
		return model.PlayerStats{}
	}
	atTier := make(map[model.VehicleID]struct{})
	for _, v := range c.tiers.VehiclesByTier(tier) {
		atTier[v] = struct{}{}
	}

	var battles, wins, damage int
	for _, e := range c.tables[id] {
		if _, ok := atTier[e.TankID]; !ok {
			continue
		}
		battles += e.Battles
		wins += e.Wins
		damage += e.DamageDealt
	}

	s := model.PlayerStats{Battles: battles}
	if battles > 0 {
		s.WinRate = float64(wins) / float64(battles) * 100
		s.AvgDamage = float64(damage) / float64(battles)
	}
	return s
}

// GetStats returns the resolved statistic for a query. It never fails: an
// unregistered query, an unqueried account or an empty slice all return the
// zero sentinel.
func (c *Cache) GetStats(q StatsQuery) model.PlayerStats {
	return c.results[q.Key()]
}

// Attach writes the resolved statistics into every player record of an
// enriched replay. Call after Fill, before aggregation.
func (c *Cache) Attach(r *model.EnrichedReplay) {
	for id, p := range r.Performances {
		p.Stats = c.GetStats(c.queryFor(r, id))
	}
}
