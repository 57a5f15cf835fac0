package schema

import (
	"strconv"
	"strings"

	pjson "github.com/ajitpratap0/pitchline/pkg/json"
	"github.com/ajitpratap0/pitchline/pkg/models"
)

// ParseCell types a raw text cell (e.g. from CSV) so that it infers the same
// way a JSON value would.
//
// Empty cells are missing, "true"/"false" (any case) are booleans, anything
// strconv accepts as a number becomes a json.Number, the rest stays text.
// "1" and "0" stay integers; they are not read as booleans.
func ParseCell(s string) interface{} {
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return pjson.Number(s)
	}
	// ParseFloat also accepts inf, nan and hex floats, which are not numbers in JSON.
	if _, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "iInN_xX") {
		return pjson.Number(s)
	}
	return s
}

// RecordFromCells builds a record from a header row and one row of cells.
func RecordFromCells(header, cells []string) *models.Record {
	r := models.NewRecord(len(header))
	for i, name := range header {
		var v interface{}
		if i < len(cells) {
			v = ParseCell(cells[i])
		}
		r.Set(name, v)
	}
	return r
}
