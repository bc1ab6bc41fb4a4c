package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatsType(t *testing.T) {
	for spec, want := range map[string]StatsType{
		"":        StatsAccount,
		"account": StatsAccount,
		"tier":    StatsTier,
		"vehicle": StatsVehicle,
		"tank":    StatsVehicle,
	} {
		got, err := ParseStatsType(spec)
		require.NoError(t, err, "spec %q", spec)
		assert.Equal(t, want, got, "spec %q", spec)
	}

	_, err := ParseStatsType("career")
	assert.Error(t, err)
}

func TestQueryKeys(t *testing.T) {
	// Equal logical queries produce equal keys.
	assert.Equal(t, AccountQuery(77).Key(), AccountQuery(77).Key())
	assert.Equal(t, TierQuery(77, 6).Key(), TierQuery(77, 6).Key())
	assert.Equal(t, VehicleQuery(77, 3137).Key(), VehicleQuery(77, 3137).Key())

	// Distinct slices never collide.
	keys := map[string]struct{}{}
	for _, q := range []StatsQuery{
		AccountQuery(77),
		AccountQuery(78),
		TierQuery(77, 6),
		TierQuery(77, 7),
		VehicleQuery(77, 3137),
		VehicleQuery(77, 3138),
	} {
		keys[q.Key()] = struct{}{}
	}
	assert.Len(t, keys, 6)
}

func TestQueryKeyFixedWidth(t *testing.T) {
	for _, q := range []StatsQuery{
		AccountQuery(1),
		AccountQuery(3_500_000_000),
		TierQuery(521_458_531, 10),
		VehicleQuery(77, 999_999),
	} {
		assert.Len(t, q.Key(), 20, "key %q", q.Key())
	}
}
