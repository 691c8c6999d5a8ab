// Package export renders dispatch allocations as tables for operators and
// downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/kilianp07/vpp/core/model"
)

// Row is one line of an allocation table.
type Row struct {
	PlantID     int     `json:"plant_id"`
	Name        string  `json:"name"`
	AllocatedKW float64 `json:"allocated_kw"`
}

// Rows joins the allocation with plant names, ordered by plant id. Plants
// missing from plants get an empty name.
func Rows(alloc model.DispatchAllocation, plants []model.Plant) []Row {
	names := make(map[int]string, len(plants))
	for _, p := range plants {
		names[p.ID] = p.Name
	}
	ids := alloc.Allocations.IDs()
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, Row{PlantID: id, Name: names[id], AllocatedKW: alloc.Allocations[id]})
	}
	return rows
}

// WriteJSON writes the allocation to w in JSON format.
func WriteJSON(w io.Writer, alloc model.DispatchAllocation) error {
	enc := json.NewEncoder(w)
	return enc.Encode(alloc)
}

// WriteCSV writes one row per allocated plant with a plant_id,name,allocated_kw
// header.
func WriteCSV(w io.Writer, alloc model.DispatchAllocation, plants []model.Plant) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"plant_id", "name", "allocated_kw"}); err != nil {
		return err
	}
	for _, r := range Rows(alloc, plants) {
		rec := []string{
			strconv.Itoa(r.PlantID),
			r.Name,
			strconv.FormatFloat(r.AllocatedKW, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes an aligned, human readable table followed by the totals.
func WriteTable(w io.Writer, alloc model.DispatchAllocation, plants []model.Plant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tALLOCATED (kW)")
	for _, r := range Rows(alloc, plants) {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\n", r.PlantID, r.Name, r.AllocatedKW)
	}
	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "\tdispatched\t%.2f\n", alloc.TotalDispatched)
	fmt.Fprintf(tw, "\tunmet\t%.2f\n", alloc.UnmetDemand)
	return tw.Flush()
}
