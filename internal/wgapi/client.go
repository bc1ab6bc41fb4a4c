// Package wgapi is a minimal client for the vendor stats API. It exposes the
// two read-only endpoints the stats cache needs: bulk account-wide statistics
// and the full per-vehicle statistics table for one account.
package wgapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

// MaxBatchSize is the largest number of account ids accepted by the bulk
// account endpoint in one call.
const MaxBatchSize = 100

// defaultHosts maps each region to its API host.
var defaultHosts = map[model.Region]string{
	model.RegionRU:    "https://api.wotblitz.ru",
	model.RegionEU:    "https://api.wotblitz.eu",
	model.RegionNA:    "https://api.wotblitz.com",
	model.RegionAsia:  "https://api.wotblitz.asia",
	model.RegionChina: "https://api.wotblitz.asia",
}

// Client is an HTTP client for the stats API.
type Client struct {
	appID      string
	httpClient *http.Client
	hosts      map[model.Region]string
}

// NewClient creates a client authenticated with the given application id.
func NewClient(appID string) *Client {
	return &Client{
		appID:      appID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		hosts:      defaultHosts,
	}
}

// NewClientWithHost creates a client that sends every request to a single
// host regardless of region. Used by tests against a local server.
func NewClientWithHost(appID, host string) *Client {
	c := NewClient(appID)
	c.hosts = map[model.Region]string{}
	for r := range defaultHosts {
		c.hosts[r] = host
	}
	return c
}

// VehicleStatsEntry is one row of an account's per-vehicle statistics table.
type VehicleStatsEntry struct {
	TankID      model.VehicleID
	Battles     int
	Wins        int
	DamageDealt int
}

// Stats collapses the entry to the resolved statistic record.
func (e VehicleStatsEntry) Stats() model.PlayerStats {
	return ratioStats(e.Battles, e.Wins, e.DamageDealt)
}

// apiEnvelope is the common response wrapper.
type apiEnvelope struct {
	Status string          `json:"status"`
	Error  *apiError       `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type allStats struct {
	Battles     int `json:"battles"`
	Wins        int `json:"wins"`
	DamageDealt int `json:"damage_dealt"`
}

// FetchAccountStats fetches account-wide statistics for up to MaxBatchSize
// ids in one round trip. All ids must belong to the same region. Accounts the
// API knows nothing about map to a nil entry; an entirely empty payload
// returns (nil, nil) — "no stats", not an error.
func (c *Client) FetchAccountStats(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.PlayerStats, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("wgapi: batch of %d exceeds limit %d", len(ids), MaxBatchSize)
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	params := url.Values{
		"application_id": {c.appID},
		"account_id":     {strings.Join(parts, ",")},
		"fields":         {"statistics.all.battles,statistics.all.wins,statistics.all.damage_dealt"},
	}

	body, err := c.get(ctx, model.RegionFromAccount(ids[0]), "/wotb/account/info/", params)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var data map[model.AccountID]*struct {
		Statistics struct {
			All allStats `json:"all"`
		} `json:"statistics"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("wgapi: decode account stats: %w", err)
	}

	out := make(map[model.AccountID]*model.PlayerStats, len(data))
	for id, rec := range data {
		if rec == nil {
			out[id] = nil
			continue
		}
		s := ratioStats(rec.Statistics.All.Battles, rec.Statistics.All.Wins, rec.Statistics.All.DamageDealt)
		out[id] = &s
	}
	return out, nil
}

// FetchVehicleStats fetches the full per-vehicle statistics table for one
// account in a single round trip. Returns (nil, nil) when the account has no
// table.
func (c *Client) FetchVehicleStats(ctx context.Context, id model.AccountID) ([]VehicleStatsEntry, error) {
	params := url.Values{
		"application_id": {c.appID},
		"account_id":     {strconv.FormatUint(uint64(id), 10)},
		"fields":         {"tank_id,all.battles,all.wins,all.damage_dealt"},
	}

	body, err := c.get(ctx, model.RegionFromAccount(id), "/wotb/tanks/stats/", params)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var data map[model.AccountID][]struct {
		TankID model.VehicleID `json:"tank_id"`
		All    allStats        `json:"all"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("wgapi: decode vehicle stats: %w", err)
	}

	rows := data[id]
	entries := make([]VehicleStatsEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, VehicleStatsEntry{
			TankID:      row.TankID,
			Battles:     row.All.Battles,
			Wins:        row.All.Wins,
			DamageDealt: row.All.DamageDealt,
		})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries, nil
}

// get performs one API round trip and unwraps the response envelope.
// A nil, nil return means the API answered cleanly with no data.
func (c *Client) get(ctx context.Context, region model.Region, path string, params url.Values) (json.RawMessage, error) {
	host, ok := c.hosts[region]
	if !ok {
		return nil, fmt.Errorf("wgapi: no API host for region %s", region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wgapi: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("wgapi: rate limited, retry later")
	default:
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("wgapi: HTTP %d: %s", resp.StatusCode, snippet)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("wgapi: decode envelope: %w", err)
	}
	if env.Status != "ok" {
		if env.Error != nil {
			return nil, fmt.Errorf("wgapi: API error %d: %s", env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("wgapi: API status %q", env.Status)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	return env.Data, nil
}

func ratioStats(battles, wins, damage int) model.PlayerStats {
	s := model.PlayerStats{Battles: battles}
	if battles > 0 {
		s.WinRate = float64(wins) / float64(battles) * 100
		s.AvgDamage = float64(damage) / float64(battles)
	}
	return s
}
