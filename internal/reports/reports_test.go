package reports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

func makeEngine(t *testing.T) *Engine {
	t.Helper()
	fields := []ReportField{
		mustField(t, FieldSpec{Key: "battles", Metric: "count", Format: "%.0f"}),
		mustField(t, FieldSpec{Key: "dpb", Metric: "average", Fields: "damage_made", Format: "%.0f"}),
	}
	classifiers := []Categorization{
		mustCategorization(t, ReportSpec{Key: "total", Type: "total", Title: "All battles"}),
		mustCategorization(t, ReportSpec{
			Key: "result", Type: "category", Field: "result", Title: "By result",
			Labels: []string{"Loss", "Win", "Draw"},
		}),
	}
	return NewEngine(fields, classifiers)
}

func TestEngineFold(t *testing.T) {
	e := makeEngine(t)

	loss := makeBattle()
	loss.Result = model.ResultLoss
	loss.Performances[10].DamageDealt = 900

	e.AddReplay(makeBattle())
	e.AddReplay(makeBattle())
	e.AddReplay(loss)

	total := e.Reports()[0].Categories()
	require.Len(t, total, 1)
	assert.Equal(t, "Total", total[0].Key)
	assert.Equal(t, "3", cell(total[0], e.Fields()[0]))
	assert.Equal(t, "1300", cell(total[0], e.Fields()[1]))

	byResult := e.Reports()[1].Categories()
	require.Len(t, byResult, 2)
	// Display order is the reversed label list restricted to observed keys.
	assert.Equal(t, "Win", byResult[0].Key)
	assert.Equal(t, "Loss", byResult[1].Key)
	assert.Equal(t, "2", cell(byResult[0], e.Fields()[0]))
	assert.Equal(t, "1500", cell(byResult[0], e.Fields()[1]))
	assert.Equal(t, "900", cell(byResult[1], e.Fields()[1]))
}

func TestEngineSkipsFullyExcludedReplay(t *testing.T) {
	fields := []ReportField{
		mustField(t, FieldSpec{Key: "battles", Metric: "count", Format: "%.0f"}),
	}
	classifiers := []Categorization{
		mustCategorization(t, ReportSpec{Key: "vehicle", Type: "string", Field: "vehicle"}),
	}
	e := NewEngine(fields, classifiers)

	r := makeBattle()
	r.Performances[10].VehicleOK = false
	e.AddReplay(r)

	assert.Empty(t, e.Reports()[0].Categories())
}

func TestCellPlaceholderAndText(t *testing.T) {
	e := makeEngine(t)
	e.AddReplay(makeBattle())

	cat := e.Reports()[0].Categories()[0]

	// A field that never wrote to this category renders the placeholder.
	ghost := mustField(t, FieldSpec{Key: "ghost", Metric: "count"})
	assert.Equal(t, "-", cell(cat, ghost))

	// A recorded text overrides the numeric cell.
	cat.RecordText("battles", "n/a")
	assert.Equal(t, "n/a", cell(cat, e.Fields()[0]))
}

func TestRender(t *testing.T) {
	e := makeEngine(t)
	e.AddReplay(makeBattle())

	var buf bytes.Buffer
	e.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "All battles")
	assert.Contains(t, out, "By result")
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "BATTLES")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "Win")
}

func TestExport(t *testing.T) {
	e := makeEngine(t)
	e.AddReplay(makeBattle())
	e.AddReplay(makeBattle())

	var buf bytes.Buffer
	require.NoError(t, e.Export(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "# total", lines[0])
	assert.Equal(t, "category\tbattles\tdpb", lines[1])
	assert.Equal(t, "Total\t2\t1500", lines[2])
	assert.Equal(t, "# result", lines[3])
	assert.Equal(t, "Win\t2\t1500", lines[5])
}
