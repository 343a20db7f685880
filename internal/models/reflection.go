package models

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// Reflection represents a single diffraction spot with its shoebox and
// predicted/observed positions
type Reflection struct {
	// MillerIndex is the (h, k, l) index of the reflection
	MillerIndex [3]int

	// S1 is the calculated diffracted beam vector in the lab frame
	S1 r3.Vector

	// Shoebox holds the pixel values and mask around the reflection
	Shoebox *Shoebox

	// XYZObsPx is the observed centroid in pixels and frames
	XYZObsPx [3]float64

	// XYZCalMM is the calculated position: millimetres on the panel and the
	// rotation angle in radians
	XYZCalMM [3]float64

	// Zeta is the lorentz coupling of the reflection to the rotation axis
	Zeta float64

	// PartialID links single-frame partials back to the row they were split from
	PartialID int
}

// Column identifies a column of the reflection table. Values are bit flags
// so a set of present columns fits in a single Column.
type Column uint

const (
	ColumnMillerIndex Column = 1 << iota
	ColumnS1
	ColumnShoebox
	ColumnXYZObsPx
	ColumnXYZCalMM
	ColumnZeta
)

var columnNames = []struct {
	col  Column
	name string
}{
	{ColumnMillerIndex, "miller_index"},
	{ColumnS1, "s1"},
	{ColumnShoebox, "shoebox"},
	{ColumnXYZObsPx, "xyzobs.px.value"},
	{ColumnXYZCalMM, "xyzcal.mm"},
	{ColumnZeta, "zeta"},
}

// String returns the column names in the set, comma separated
func (c Column) String() string {
	var names []string
	for _, cn := range columnNames {
		if c&cn.col != 0 {
			names = append(names, cn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// MissingColumnError is returned when a reflection table lacks a column an
// algorithm needs
type MissingColumnError struct {
	Column Column
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("reflection table is missing column %q", e.Column.String())
}

// Table is a set of reflections together with the set of columns that were
// populated. Tables are treated as immutable: Select, WithZeta and
// SplitPartials return new tables and never touch the receiver's rows.
type Table struct {
	Rows    []Reflection
	columns Column
}

// NewTable wraps rows in a table declaring the given columns as present
func NewTable(rows []Reflection, cols ...Column) *Table {
	t := &Table{Rows: rows}
	for _, c := range cols {
		t.columns |= c
	}
	return t
}

// Len returns the number of rows in the table
func (t *Table) Len() int { return len(t.Rows) }

// Columns returns the set of present columns
func (t *Table) Columns() Column { return t.columns }

// Has reports whether every column in c is present
func (t *Table) Has(c Column) bool { return t.columns&c == c }

// Require returns a MissingColumnError for the first absent column
func (t *Table) Require(cols ...Column) error {
	for _, c := range cols {
		if !t.Has(c) {
			return &MissingColumnError{Column: c &^ t.columns}
		}
	}
	return nil
}

// Select returns a new table holding the rows for which keep is true
func (t *Table) Select(keep []bool) (*Table, error) {
	if len(keep) != len(t.Rows) {
		return nil, fmt.Errorf("selection has %d entries for %d rows", len(keep), len(t.Rows))
	}
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	rows := make([]Reflection, 0, n)
	for i, k := range keep {
		if k {
			rows = append(rows, t.Rows[i])
		}
	}
	return &Table{Rows: rows, columns: t.columns}, nil
}

// WithZeta returns a copy of the table with the zeta column set
func (t *Table) WithZeta(zeta []float64) (*Table, error) {
	if len(zeta) != len(t.Rows) {
		return nil, fmt.Errorf("zeta has %d entries for %d rows", len(zeta), len(t.Rows))
	}
	rows := make([]Reflection, len(t.Rows))
	copy(rows, t.Rows)
	for i := range rows {
		rows[i].Zeta = zeta[i]
	}
	return &Table{Rows: rows, columns: t.columns | ColumnZeta}, nil
}

// SplitPartials expands every reflection into one row per image frame its
// shoebox covers. Each output row has a single-frame shoebox and keeps the
// remaining columns of its source row; PartialID holds the source row index.
func (t *Table) SplitPartials() (*Table, error) {
	if err := t.Require(ColumnShoebox); err != nil {
		return nil, err
	}

	total := 0
	for i, r := range t.Rows {
		if r.Shoebox == nil {
			return nil, fmt.Errorf("row %d has no shoebox", i)
		}
		if err := r.Shoebox.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		total += r.Shoebox.BBox.ZSize()
	}

	rows := make([]Reflection, 0, total)
	for i, r := range t.Rows {
		nz, _, _ := r.Shoebox.Size()
		for k := 0; k < nz; k++ {
			p := r
			p.Shoebox = r.Shoebox.Frame(k)
			p.PartialID = i
			rows = append(rows, p)
		}
	}
	return &Table{Rows: rows, columns: t.columns}, nil
}
