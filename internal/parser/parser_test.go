package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

const replayJSON = `{
	"complete": true,
	"map_id": 8,
	"battle_mode": "regular",
	"battle_duration": 300,
	"result": 1,
	"protagonist": 521458531,
	"allies": [521458531, 521458532],
	"enemies": [521458533],
	"players": {
		"521458531": {"vehicle_id": 2, "damage_dealt": 1500, "shots": 10, "hits": 7, "survived": true},
		"521458532": {"vehicle_id": 1, "damage_dealt": 700, "squad_index": 1},
		"521458533": {"vehicle_id": 3, "damage_dealt": 900}
	}
}`

func writeReplay(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseReplay(t *testing.T) {
	path := writeReplay(t, t.TempDir(), "battle.wotbreplay.json", replayJSON)

	r, err := ParseReplay(path)
	require.NoError(t, err)

	assert.True(t, r.Complete)
	assert.Equal(t, model.MapID(8), r.MapID)
	assert.Equal(t, model.ResultWin, r.Result)
	assert.Equal(t, model.AccountID(521458531), r.Protagonist)
	assert.Len(t, r.Allies, 2)
	assert.Len(t, r.Performances, 3)

	p := r.Performances[521458531]
	require.NotNil(t, p)
	assert.Equal(t, model.VehicleID(2), p.VehicleID)
	assert.Equal(t, 1500, p.DamageDealt)
	assert.True(t, p.Survived)
	assert.Equal(t, 1, r.Performances[521458532].SquadIndex)
}

func TestParseReplayEmptyPlayers(t *testing.T) {
	path := writeReplay(t, t.TempDir(), "empty.json", `{"complete": true}`)

	r, err := ParseReplay(path)
	require.NoError(t, err)
	assert.NotNil(t, r.Performances, "players map is always usable")
}

func TestParseReplayErrors(t *testing.T) {
	_, err := ParseReplay(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read replay")

	path := writeReplay(t, t.TempDir(), "broken.json", "{not json")
	_, err = ParseReplay(path)
	assert.ErrorContains(t, err, "decode replay broken.json")
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	b := writeReplay(t, dir, "b.json", "{}")
	a := writeReplay(t, dir, "a.wotbreplay.json", "{}")
	nested := writeReplay(t, sub, "c.json", "{}")
	writeReplay(t, dir, "notes.txt", "not a replay")

	files, err := Discover([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, nested}, files, "sorted, recursive, replay files only")
}

func TestDiscoverMixedArgs(t *testing.T) {
	dir := t.TempDir()
	one := writeReplay(t, dir, "one.json", "{}")

	other := t.TempDir()
	two := writeReplay(t, other, "two.json", "{}")

	files, err := Discover([]string{one, other})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{one, two}, files)
}

func TestDiscoverMissingArg(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "nope")})
	assert.ErrorContains(t, err, "stat")
}
