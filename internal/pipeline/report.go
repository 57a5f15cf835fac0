package pipeline

import "time"

// TableReport describes what a run did with one table.
type TableReport struct {
	Name          string        `json:"name" yaml:"name"`
	Rows          int64         `json:"rows" yaml:"rows"`
	Columns       int           `json:"columns" yaml:"columns"`
	Dropped       []string      `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Converted     []string      `json:"converted,omitempty" yaml:"converted,omitempty"`
	Files         []string      `json:"files,omitempty" yaml:"files,omitempty"`
	Uploaded      []string      `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
	DatabaseTable string        `json:"database_table,omitempty" yaml:"database_table,omitempty"`
	RowsLoaded    int64         `json:"rows_loaded,omitempty" yaml:"rows_loaded,omitempty"`
	Skipped       bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
}

// Report summarizes a run.
type Report struct {
	Source   string        `json:"source" yaml:"source"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Tables   []TableReport `json:"tables" yaml:"tables"`
}

// Table returns the report of the named table.
func (r *Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// TotalRows sums the rows of every table that was not skipped.
func (r *Report) TotalRows() int64 {
	var n int64
	for _, t := range r.Tables {
		if !t.Skipped {
			n += t.Rows
		}
	}
	return n
}
