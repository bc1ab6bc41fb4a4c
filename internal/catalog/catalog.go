// Package catalog loads the vehicle (tankopedia) and map reference catalogs
// used to enrich replays. Both are plain JSON documents keyed by id.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

// VehicleCatalog resolves vehicle ids to tankopedia metadata.
type VehicleCatalog struct {
	vehicles map[model.VehicleID]model.VehicleMeta
	byTier   map[int][]model.VehicleID
}

// LoadVehicles reads a tankopedia JSON file. The document is a map from
// stringified vehicle id to metadata record.
func LoadVehicles(path string) (*VehicleCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tankopedia: %w", err)
	}
	var raw map[model.VehicleID]model.VehicleMeta
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tankopedia %s: %w", path, err)
	}
	return NewVehicleCatalog(raw), nil
}

// NewVehicleCatalog builds a catalog from already-decoded records, fixing up
// ids, class tags and the tier index.
func NewVehicleCatalog(raw map[model.VehicleID]model.VehicleMeta) *VehicleCatalog {
	c := &VehicleCatalog{
		vehicles: make(map[model.VehicleID]model.VehicleMeta, len(raw)),
		byTier:   make(map[int][]model.VehicleID),
	}
	for id, meta := range raw {
		meta.ID = id
		meta.Class = model.ParseVehicleClass(meta.Type)
		c.vehicles[id] = meta
		c.byTier[meta.Tier] = append(c.byTier[meta.Tier], id)
	}
	for tier := range c.byTier {
		ids := c.byTier[tier]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return c
}

// Lookup resolves one vehicle id.
func (c *VehicleCatalog) Lookup(id model.VehicleID) (model.VehicleMeta, error) {
	meta, ok := c.vehicles[id]
	if !ok {
		return model.VehicleMeta{}, fmt.Errorf("vehicle %d not in catalog", id)
	}
	return meta, nil
}

// VehiclesByTier returns the ids of every catalog vehicle at the given tier,
// in ascending id order.
func (c *VehicleCatalog) VehiclesByTier(tier int) []model.VehicleID {
	return c.byTier[tier]
}

// Len reports the number of vehicles in the catalog.
func (c *VehicleCatalog) Len() int { return len(c.vehicles) }

// MapCatalog resolves map ids to arena metadata.
type MapCatalog struct {
	maps map[model.MapID]model.MapMeta
}

// LoadMaps reads a map catalog JSON file: a map from stringified map id to
// display name.
func LoadMaps(path string) (*MapCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map catalog: %w", err)
	}
	var raw map[model.MapID]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode map catalog %s: %w", path, err)
	}
	return NewMapCatalog(raw), nil
}

// NewMapCatalog builds a catalog from already-decoded name records.
func NewMapCatalog(raw map[model.MapID]string) *MapCatalog {
	c := &MapCatalog{maps: make(map[model.MapID]model.MapMeta, len(raw))}
	for id, name := range raw {
		c.maps[id] = model.MapMeta{ID: id, Name: name}
	}
	return c
}

// Lookup resolves one map id.
func (c *MapCatalog) Lookup(id model.MapID) (model.MapMeta, error) {
	meta, ok := c.maps[id]
	if !ok {
		return model.MapMeta{}, fmt.Errorf("map %d not in catalog", id)
	}
	return meta, nil
}

// Len reports the number of maps in the catalog.
func (c *MapCatalog) Len() int { return len(c.maps) }
