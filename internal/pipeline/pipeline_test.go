package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporokh/go-tank-metrics/internal/cache"
	"github.com/vporokh/go-tank-metrics/internal/catalog"
	"github.com/vporokh/go-tank-metrics/internal/model"
	"github.com/vporokh/go-tank-metrics/internal/reports"
	"github.com/vporokh/go-tank-metrics/internal/wgapi"
)

// fakeStats serves account statistics from a fixed map and counts round trips.
type fakeStats struct {
	mu    sync.Mutex
	calls int
	stats map[model.AccountID]*model.PlayerStats
}

func (f *fakeStats) FetchAccountStats(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.PlayerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[model.AccountID]*model.PlayerStats, len(ids))
	for _, id := range ids {
		out[id] = f.stats[id]
	}
	return out, nil
}

func (f *fakeStats) FetchVehicleStats(ctx context.Context, id model.AccountID) ([]wgapi.VehicleStatsEntry, error) {
	return nil, nil
}

func testCatalogs() (*catalog.VehicleCatalog, *catalog.MapCatalog) {
	vehicles := catalog.NewVehicleCatalog(map[model.VehicleID]model.VehicleMeta{
		1: {Name: "Light One", Type: "lightTank", Tier: 5, Nation: "ussr"},
		2: {Name: "Medium Two", Type: "mediumTank", Tier: 6, Nation: "germany"},
		3: {Name: "Heavy Three", Type: "heavyTank", Tier: 6, Nation: "usa"},
	})
	maps := catalog.NewMapCatalog(map[model.MapID]string{8: "Desert Sands"})
	return vehicles, maps
}

func testEngine(t *testing.T) *reports.Engine {
	t.Helper()
	battles, err := reports.NewField(reports.NewFieldFactories(), reports.FieldSpec{Key: "battles", Metric: "count", Format: "%.0f"})
	require.NoError(t, err)
	awr, err := reports.NewField(reports.NewFieldFactories(), reports.FieldSpec{Key: "awr", Metric: "average", Fields: "player.wr", Filter: "allies-all"})
	require.NoError(t, err)
	total, err := reports.NewCategorization(reports.NewCategorizationFactories(), reports.ReportSpec{Key: "total", Type: "total"}, zerolog.Nop())
	require.NoError(t, err)
	return reports.NewEngine([]reports.ReportField{battles, awr}, []reports.Categorization{total})
}

// writeBattle writes one replay file: protagonist 600000001 with one ally and
// one enemy, a win with the given damage.
func writeBattle(t *testing.T, dir, name string, damage int) {
	t.Helper()
	content := fmt.Sprintf(`{
		"complete": true,
		"map_id": 8,
		"battle_mode": "regular",
		"battle_duration": 300,
		"result": 1,
		"protagonist": 600000001,
		"allies": [600000001, 600000002],
		"enemies": [600000003],
		"players": {
			"600000001": {"vehicle_id": 2, "damage_dealt": %d, "shots": 10, "hits": 7},
			"600000002": {"vehicle_id": 1, "damage_dealt": 700},
			"600000003": {"vehicle_id": 3, "damage_dealt": 900}
		}
	}`, damage)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeBattle(t, dir, "one.wotbreplay.json", 1200)
	writeBattle(t, dir, "two.wotbreplay.json", 1800)
	writeBattle(t, dir, "three.wotbreplay.json", 900)

	// A broken file and an incomplete battle are skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{oops"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.json"), []byte(`{"complete": false, "protagonist": 600000001}`), 0o644))

	api := &fakeStats{stats: map[model.AccountID]*model.PlayerStats{
		600000002: {Battles: 1000, WinRate: 52, AvgDamage: 1300},
		600000003: {Battles: 2000, WinRate: 48, AvgDamage: 1100},
	}}

	vehicles, maps := testCatalogs()
	stats := cache.New(api, cache.StatsAccount, vehicles, zerolog.Nop())
	engine := testEngine(t)

	counters, err := Run(context.Background(), Options{
		Args:     []string{dir},
		Readers:  3,
		Fetchers: 2,
	}, engine, stats, vehicles, maps, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 5, counters.Files)
	assert.Equal(t, 3, counters.Enriched)
	assert.Equal(t, 2, counters.Errors)
	assert.Equal(t, 3, counters.Queries, "three distinct accounts across all replays")
	assert.Equal(t, 3, counters.Fetch.Accounts, "each account fetched exactly once")
	assert.Zero(t, counters.Fetch.Errors)

	var buf bytes.Buffer
	require.NoError(t, engine.Export(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "category\tbattles\tawr", lines[1])
	// Ally 600000002 carries a 52% win rate into every battle.
	assert.Equal(t, "Total\t3\t52.0", lines[2])
}

func TestRunFromSpecificPerspective(t *testing.T) {
	dir := t.TempDir()
	writeBattle(t, dir, "one.json", 1200)

	api := &fakeStats{stats: map[model.AccountID]*model.PlayerStats{
		600000001: {Battles: 500, WinRate: 60},
		600000002: {Battles: 500, WinRate: 40},
	}}

	vehicles, maps := testCatalogs()
	stats := cache.New(api, cache.StatsAccount, vehicles, zerolog.Nop())
	engine := testEngine(t)

	// Analyzed from the enemy player's side: the recorded protagonist's team
	// becomes the enemy team.
	counters, err := Run(context.Background(), Options{
		Args:   []string{dir},
		Player: 600000003,
	}, engine, stats, vehicles, maps, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Enriched)

	var buf bytes.Buffer
	require.NoError(t, engine.Export(&buf))
	assert.NotContains(t, buf.String(), "60.0", "the protagonist's own team is no longer allied")
}

func TestRunNoFiles(t *testing.T) {
	vehicles, maps := testCatalogs()
	stats := cache.New(&fakeStats{}, cache.StatsAccount, vehicles, zerolog.Nop())

	_, err := Run(context.Background(), Options{Args: []string{t.TempDir()}},
		testEngine(t), stats, vehicles, maps, zerolog.Nop())
	assert.ErrorContains(t, err, "no replay files")
}

func TestRunMissingArg(t *testing.T) {
	vehicles, maps := testCatalogs()
	stats := cache.New(&fakeStats{}, cache.StatsAccount, vehicles, zerolog.Nop())

	_, err := Run(context.Background(), Options{Args: []string{filepath.Join(t.TempDir(), "nope")}},
		testEngine(t), stats, vehicles, maps, zerolog.Nop())
	assert.ErrorContains(t, err, "discover replays")
}

func TestPrintSummary(t *testing.T) {
	c := &Counters{Files: 5, Enriched: 3, Errors: 2, Queries: 3}
	c.Fetch = cache.Counters{Accounts: 3, Calls: 1}

	var buf bytes.Buffer
	c.PrintSummary(&buf)
	out := buf.String()
	assert.Contains(t, out, "5 read")
	assert.Contains(t, out, "3 analyzed")
	assert.Contains(t, out, "1 API calls")
}
