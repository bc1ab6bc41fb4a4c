package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

const tankopediaJSON = `{
	"1": {"name": "Light One", "type": "lightTank", "tier": 5, "nation": "ussr"},
	"2": {"name": "Medium Two", "type": "mediumTank", "tier": 6, "nation": "germany"},
	"3": {"name": "Heavy Three", "type": "heavyTank", "tier": 6, "nation": "usa", "is_premium": true}
}`

const mapsJSON = `{"8": "Desert Sands", "9": "Middleburg"}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadVehicles(t *testing.T) {
	c, err := LoadVehicles(writeTemp(t, "tankopedia.json", tankopediaJSON))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	meta, err := c.Lookup(2)
	require.NoError(t, err)
	assert.Equal(t, model.VehicleID(2), meta.ID, "id is fixed up from the document key")
	assert.Equal(t, "Medium Two", meta.Name)
	assert.Equal(t, model.ClassMedium, meta.Class, "class is derived from the type tag")
	assert.Equal(t, 6, meta.Tier)

	premium, err := c.Lookup(3)
	require.NoError(t, err)
	assert.True(t, premium.Premium)

	_, err = c.Lookup(999)
	assert.ErrorContains(t, err, "not in catalog")
}

func TestVehiclesByTier(t *testing.T) {
	c, err := LoadVehicles(writeTemp(t, "tankopedia.json", tankopediaJSON))
	require.NoError(t, err)

	assert.Equal(t, []model.VehicleID{2, 3}, c.VehiclesByTier(6), "ascending id order")
	assert.Equal(t, []model.VehicleID{1}, c.VehiclesByTier(5))
	assert.Empty(t, c.VehiclesByTier(10))
}

func TestLoadVehiclesErrors(t *testing.T) {
	_, err := LoadVehicles(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read tankopedia")

	_, err = LoadVehicles(writeTemp(t, "broken.json", "{"))
	assert.ErrorContains(t, err, "decode tankopedia")
}

func TestLoadMaps(t *testing.T) {
	c, err := LoadMaps(writeTemp(t, "maps.json", mapsJSON))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	meta, err := c.Lookup(8)
	require.NoError(t, err)
	assert.Equal(t, "Desert Sands", meta.Name)
	assert.Equal(t, model.MapID(8), meta.ID)

	_, err = c.Lookup(12)
	assert.ErrorContains(t, err, "not in catalog")
}

func TestLoadMapsErrors(t *testing.T) {
	_, err := LoadMaps(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read map catalog")

	_, err = LoadMaps(writeTemp(t, "broken.json", "[]"))
	assert.ErrorContains(t, err, "decode map catalog")
}
