package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vpp/core/model"
)

var (
	testPlants = []model.Plant{
		{ID: 1, Name: "Solar Farm", MaxCapacity: 100},
		{ID: 2, Name: "Gas, Peaker", MaxCapacity: 50},
		{ID: 3, Name: "Wind", MaxCapacity: 10},
	}
	testAlloc = model.DispatchAllocation{
		Allocations:     model.Allocations{2: 20, 1: 100, 3: 0},
		TotalDispatched: 120,
	}
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testAlloc, testPlants))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"plant_id", "name", "allocated_kw"},
		{"1", "Solar Farm", "100"},
		{"2", "Gas, Peaker", "20"},
		{"3", "Wind", "0"},
	}, recs)
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, model.DispatchAllocation{UnmetDemand: 10}, nil))
	assert.Equal(t, "plant_id,name,allocated_kw\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testAlloc))
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, map[string]any{"1": 100.0, "2": 20.0, "3": 0.0}, out["allocations"])
	assert.Equal(t, 120.0, out["total_dispatched"])
	assert.Equal(t, 0.0, out["unmet_demand"])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testAlloc, testPlants))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "ALLOCATED (kW)")
	assert.Contains(t, lines[1], "Solar Farm")
	assert.Contains(t, lines[1], "100.00")
	assert.Contains(t, lines[5], "120.00")
}

func TestRowsUnknownPlant(t *testing.T) {
	rows := Rows(model.DispatchAllocation{Allocations: model.Allocations{9: 5}}, testPlants)
	assert.Equal(t, []Row{{PlantID: 9, AllocatedKW: 5}}, rows)
}
