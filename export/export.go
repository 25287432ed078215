// Package export writes normalized tables to external stores, so reporting results can be kept and
// analyzed beyond the lifetime of a query.
package export

import (
	"context"
	"fmt"

	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

// Sink is a store that tables can be exported to. Implemented by the clickhouse, elasticsearch
// and csv subpackages.
type Sink interface {
	// ExportTable creates the table (or index) with the given name if it does not exist, and
	// inserts every row of data into it.
	ExportTable(ctx context.Context, name string, data table.Table) error

	// DropTable removes the table (or index) with the given name. If it did not exist,
	// alreadyDropped is true.
	DropTable(ctx context.Context, name string) (alreadyDropped bool, err error)
}

// Column is a table column flattened for export: grouped labels are collapsed into a single
// "group: name" name, and values are converted to the Go type of the column's data type.
type Column struct {
	Name     string
	DataType table.DataType
	// Whether any of the column's values are nil.
	Nullable bool
	Values   []any
}

// Columns flattens the table's index and data columns, in that order.
func Columns(data table.Table) ([]Column, error) {
	columnCount := len(data.Index) + len(data.Columns)
	columns := make([]Column, 0, columnCount)
	names := make(map[string]struct{}, columnCount)

	for _, tableColumns := range [][]table.Column{data.Index, data.Columns} {
		for _, tableColumn := range tableColumns {
			name := tableColumn.Label.String()
			if _, duplicate := names[name]; duplicate {
				return nil, fmt.Errorf("multiple columns named '%s'", name)
			}
			names[name] = struct{}{}

			column, err := convertColumn(name, tableColumn)
			if err != nil {
				return nil, wrap.Errorf(err, "failed to convert column '%s'", name)
			}
			columns = append(columns, column)
		}
	}

	return columns, nil
}

// Row returns the values of every column at the given row.
func Row(columns []Column, row int) []any {
	values := make([]any, len(columns))
	for i, column := range columns {
		values[i] = column.Values[row]
	}
	return values
}

// RowCount returns the number of rows in the given columns, which are assumed to be equally long.
func RowCount(columns []Column) int {
	if len(columns) == 0 {
		return 0
	}
	return len(columns[0].Values)
}

func convertColumn(name string, tableColumn table.Column) (Column, error) {
	column := Column{
		Name:     name,
		DataType: tableColumn.DataType,
		Values:   make([]any, len(tableColumn.Values)),
	}

	for i, value := range tableColumn.Values {
		if value == nil {
			column.Nullable = true
			continue
		}

		converted, err := convertValue(tableColumn.DataType, value)
		if err != nil {
			return Column{}, wrap.Errorf(err, "invalid value in row %d", i)
		}
		column.Values[i] = converted
	}

	return column, nil
}

func convertValue(dataType table.DataType, value any) (any, error) {
	switch dataType {
	case table.DataTypeText:
		if text, ok := value.(string); ok {
			return text, nil
		}
		return fmt.Sprint(value), nil
	case table.DataTypeInt:
		switch value := value.(type) {
		case int64:
			return value, nil
		case int:
			return int64(value), nil
		case int32:
			return int64(value), nil
		}
	case table.DataTypeFloat:
		switch value := value.(type) {
		case float64:
			return value, nil
		case float32:
			return float64(value), nil
		case int64:
			return float64(value), nil
		case int:
			return float64(value), nil
		}
	default:
		return nil, fmt.Errorf("unrecognized data type '%v'", dataType)
	}

	return nil, fmt.Errorf("expected %s value, got %T", dataType, value)
}
