// Package dataset provides the in-memory working table mutated by rule
// application.
package dataset

import (
	"reflect"
	"sort"

	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * ClassifiedDataset representation.
 *
 * A Dataset is an ordered collection of open rows plus an explicit column
 * set. Rows are schema-less maps; the column set is the union of every
 * column ever seen or introduced, in first-seen order. Explicit column
 * tracking is what makes missing-column checks in rule predicates hard
 * errors instead of silent no-matches: a row lacking a cell is sparse
 * data, a dataset lacking the column is a configuration typo.
 *
 * Subset shares row maps with its parent on purpose. Entity partitions
 * are disjoint, each chain worker owns its subset exclusively, and the
 * final report reads the parent rows, so mutations made through a subset
 * must be visible in the union.
 */

// Dataset is the working in-memory table.
type Dataset struct {
	cols   []string
	colSet map[string]struct{}
	rows   []types.Record
}

// New creates an empty dataset with the given column order.
func New(columns ...string) *Dataset {
	d := &Dataset{colSet: make(map[string]struct{}, len(columns))}
	for _, c := range columns {
		d.AddColumn(c)
	}
	return d
}

// FromRecords builds a dataset from raw records. The column set is the
// union of all record keys; order is first-seen across rows, with keys
// within one record visited in sorted order for determinism.
func FromRecords(records []types.Record) *Dataset {
	d := New()
	for _, r := range records {
		d.Append(r)
	}
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.cols))
	copy(out, d.cols)
	return out
}

// HasColumn reports whether the column exists in the dataset.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.colSet[name]
	return ok
}

// AddColumn registers a column, appending it to the order if new.
func (d *Dataset) AddColumn(name string) {
	if _, ok := d.colSet[name]; ok {
		return
	}
	d.colSet[name] = struct{}{}
	d.cols = append(d.cols, name)
}

// Row returns the i-th row. The returned map is the live row; writes to
// it mutate the dataset.
func (d *Dataset) Row(i int) types.Record { return d.rows[i] }

// Rows returns the live row slice.
func (d *Dataset) Rows() []types.Record { return d.rows }

// Append adds a row and extends the column set with any new keys.
func (d *Dataset) Append(r types.Record) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.AddColumn(k)
	}
	d.rows = append(d.rows, r)
}

// Set writes a cell, registering the column if new.
func (d *Dataset) Set(row int, column string, value any) {
	d.AddColumn(column)
	d.rows[row][column] = value
}

// Subset returns a dataset over the selected row indices. Row maps are
// shared with the receiver; the column set is copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	s := New(d.cols...)
	s.rows = make([]types.Record, 0, len(indices))
	for _, i := range indices {
		s.rows = append(s.rows, d.rows[i])
	}
	return s
}

// Clone returns a deep copy: independent rows and column set.
func (d *Dataset) Clone() *Dataset {
	c := New(d.cols...)
	c.rows = make([]types.Record, 0, len(d.rows))
	for _, r := range d.rows {
		c.rows = append(c.rows, r.Clone())
	}
	return c
}

// Equal reports whether two datasets hold identical columns and rows.
// Used by pass-through guarantees in tests; not performance sensitive.
func (d *Dataset) Equal(other *Dataset) bool {
	if other == nil || len(d.cols) != len(other.cols) || len(d.rows) != len(other.rows) {
		return false
	}
	for i, c := range d.cols {
		if other.cols[i] != c {
			return false
		}
	}
	for i, r := range d.rows {
		if !reflect.DeepEqual(r, other.rows[i]) {
			return false
		}
	}
	return true
}

// LeftJoin merges columns of right into left rows by equality on key,
// keeping every left row. First matching right row wins; left rows
// without a match keep their cells untouched. Existing left columns are
// never overwritten.
func LeftJoin(left, right *Dataset, key string) *Dataset {
	index := make(map[any]types.Record, right.Len())
	for _, r := range right.rows {
		k, ok := r[key]
		if !ok {
			continue
		}
		if _, seen := index[k]; !seen {
			index[k] = r
		}
	}

	out := New(left.cols...)
	for _, c := range right.cols {
		out.AddColumn(c)
	}
	out.rows = make([]types.Record, 0, left.Len())

	for _, l := range left.rows {
		row := l.Clone()
		if k, ok := l[key]; ok {
			if match, found := index[k]; found {
				for c, v := range match {
					if _, exists := row[c]; !exists {
						row[c] = v
					}
				}
			}
		}
		out.rows = append(out.rows, row)
	}

	return out
}
