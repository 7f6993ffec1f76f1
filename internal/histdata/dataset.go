package histdata

import (
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region dataset

// Dataset is an in-memory tabular slice of race history. Columns are
// named after causal model variables; categorical and boolean values are
// encoded as level indexes. Consumed only by the offline fit.
type Dataset struct {
	Columns []string
	Rows    [][]float64
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// ColumnIndex returns the position of a named column.
func (d Dataset) ColumnIndex(name string) (int, bool) {
	for i, c := range d.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column returns all values of a named column.
func (d Dataset) Column(name string) ([]float64, error) {
	idx, ok := d.ColumnIndex(name)
	if !ok {
		return nil, simerr.Newf(simerr.CodeDatasetColumnMissing, "dataset has no column %s", name)
	}
	out := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// #endregion dataset
