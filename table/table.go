package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"hermannm.dev/wrap"
)

// A Table is a rectangular, column-ordered set of typed values. Index columns identify rows and
// are kept apart from the data columns, so that tables can be aligned on them when concatenated.
type Table struct {
	Index   []Column `json:"index,omitempty"`
	Columns []Column `json:"columns"`
}

type Column struct {
	Label    Label    `json:"label"`
	DataType DataType `json:"dataType"`
	Values   []any    `json:"values"`
}

// Label identifies a column. Group is the optional top-level heading the column is nested under
// (see Table.WithHeading and Concat).
type Label struct {
	Group string `json:"group,omitempty"`
	Name  string `json:"name"`
}

func (label Label) String() string {
	if label.Group == "" {
		return label.Name
	}
	return label.Group + ": " + label.Name
}

// NewColumn creates an ungrouped column with its data type inferred from the given values.
func NewColumn(name string, values []any) Column {
	dataType, converted := InferColumn(values)
	return Column{Label: Label{Name: name}, DataType: dataType, Values: converted}
}

// New creates a table from the given data columns, which must all have the same number of values
// and unique labels.
func New(columns ...Column) (Table, error) {
	table := Table{Columns: columns}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

func (table Table) Validate() error {
	var errs []error

	rowCount := table.RowCount()
	seen := make(map[Label]struct{}, len(table.Index)+len(table.Columns))

	for _, column := range table.allColumns() {
		if column.Label.Name == "" {
			errs = append(errs, errors.New("column name is blank"))
		}
		if len(column.Values) != rowCount {
			errs = append(errs, fmt.Errorf(
				"column '%s' has %d values, expected %d",
				column.Label, len(column.Values), rowCount,
			))
		}
		if _, duplicate := seen[column.Label]; duplicate {
			errs = append(errs, fmt.Errorf("duplicate column '%s'", column.Label))
		}
		seen[column.Label] = struct{}{}
	}

	if len(errs) != 0 {
		return wrap.Errors("invalid table", errs...)
	}
	return nil
}

func (table Table) RowCount() int {
	if len(table.Index) > 0 {
		return len(table.Index[0].Values)
	}
	if len(table.Columns) > 0 {
		return len(table.Columns[0].Values)
	}
	return 0
}

func (table Table) ColumnCount() int {
	return len(table.Columns)
}

func (table Table) Labels() []Label {
	labels := make([]Label, len(table.Columns))
	for i, column := range table.Columns {
		labels[i] = column.Label
	}
	return labels
}

// Column finds a data or index column by name. The name is matched against both the plain column
// name and the "group: name" form of grouped columns.
func (table Table) Column(name string) (column Column, ok bool) {
	for _, candidate := range table.allColumns() {
		if candidate.Label.Name == name || candidate.Label.String() == name {
			return candidate, true
		}
	}
	return Column{}, false
}

// Scalar returns the single value of a table with exactly one row and one data column.
func (table Table) Scalar() (any, error) {
	if table.RowCount() != 1 || table.ColumnCount() != 1 {
		return nil, NotScalarError{Table: table}
	}
	return table.Columns[0].Values[0], nil
}

// SetIndex moves the named data columns into the table's index, in the given order. Any previous
// index is discarded.
func (table Table) SetIndex(names ...string) (Table, error) {
	if len(names) == 0 {
		return table, nil
	}

	index := make([]Column, 0, len(names))
	columns := slices.Clone(table.Columns)

	for _, name := range names {
		position := slices.IndexFunc(columns, func(column Column) bool {
			return column.Label.Name == name || column.Label.String() == name
		})
		if position == -1 {
			return Table{}, fmt.Errorf("cannot set index: no column named '%s'", name)
		}

		index = append(index, columns[position])
		columns = slices.Delete(columns, position, position+1)
	}

	return Table{Index: index, Columns: columns}, nil
}

// WithHeading nests every data column under the given top-level group label.
func (table Table) WithHeading(heading string) Table {
	columns := make([]Column, len(table.Columns))
	for i, column := range table.Columns {
		column.Label.Group = heading
		columns[i] = column
	}
	return Table{Index: table.Index, Columns: columns}
}

// CollapseLabels flattens two-level column labels into single "group: name" names.
func (table Table) CollapseLabels() Table {
	columns := make([]Column, len(table.Columns))
	for i, column := range table.Columns {
		column.Label = Label{Name: column.Label.String()}
		columns[i] = column
	}
	return Table{Index: table.Index, Columns: columns}
}

// FilterRows returns a new table with only the rows for which keep returns true.
func (table Table) FilterRows(keep func(row int) bool) Table {
	var kept []int
	for row := 0; row < table.RowCount(); row++ {
		if keep(row) {
			kept = append(kept, row)
		}
	}

	return Table{
		Index:   selectRows(table.Index, kept),
		Columns: selectRows(table.Columns, kept),
	}
}

func selectRows(columns []Column, rows []int) []Column {
	if columns == nil {
		return nil
	}

	selected := make([]Column, len(columns))
	for i, column := range columns {
		values := make([]any, len(rows))
		for j, row := range rows {
			values[j] = column.Values[row]
		}
		column.Values = values
		selected[i] = column
	}
	return selected
}

func (table Table) allColumns() []Column {
	return slices.Concat(table.Index, table.Columns)
}

func (table Table) String() string {
	var builder strings.Builder
	writer := tabwriter.NewWriter(&builder, 0, 4, 2, ' ', 0)

	columns := table.allColumns()
	for i, column := range columns {
		if i != 0 {
			writer.Write([]byte{'\t'})
		}
		writer.Write([]byte(column.Label.String()))
	}
	writer.Write([]byte{'\n'})

	for row := 0; row < table.RowCount(); row++ {
		for i, column := range columns {
			if i != 0 {
				writer.Write([]byte{'\t'})
			}
			fmt.Fprint(writer, column.Values[row])
		}
		writer.Write([]byte{'\n'})
	}

	writer.Flush()
	return builder.String()
}

// NotScalarError is returned when a single value was expected, but the table did not have exactly
// one row and one column.
type NotScalarError struct {
	Table Table
}

func (err NotScalarError) Error() string {
	return fmt.Sprintf(
		"result should contain just one value, but got %d rows and %d columns:\n%s",
		err.Table.RowCount(), err.Table.ColumnCount(), err.Table.String(),
	)
}
