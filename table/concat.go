package table

import (
	"fmt"
	"slices"
	"strings"

	"hermannm.dev/wrap"
)

// Concat places the given tables side by side, nesting each table's data columns under the
// corresponding key. keys and tables must have the same length, and keys must be unique.
//
// If the tables have index columns, rows are aligned on their index values (an outer join,
// keeping first-seen order). Index values must be unique within each table, and only values of the
// same type are aligned (int64 1 and "1" are different keys). Otherwise rows are aligned by
// position. Missing cells are nil.
func Concat(keys []string, tables []Table) (Table, error) {
	if len(keys) != len(tables) {
		return Table{}, fmt.Errorf("got %d keys for %d tables", len(keys), len(tables))
	}
	if len(tables) == 0 {
		return Table{}, nil
	}

	seenKeys := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, duplicate := seenKeys[key]; duplicate {
			return Table{}, fmt.Errorf("duplicate table key '%s'", key)
		}
		seenKeys[key] = struct{}{}
	}

	indexed := len(tables[0].Index) > 0
	for i, table := range tables {
		if (len(table.Index) > 0) != indexed {
			return Table{}, fmt.Errorf(
				"table '%s' is not indexed like table '%s', cannot align rows", keys[i], keys[0],
			)
		}
	}

	var concatenated Table
	var err error
	if indexed {
		concatenated, err = concatByIndex(keys, tables)
	} else {
		concatenated = concatByPosition(keys, tables)
	}
	if err != nil {
		return Table{}, err
	}

	if err := concatenated.Validate(); err != nil {
		return Table{}, wrap.Error(err, "concatenated table was invalid")
	}
	return concatenated, nil
}

func concatByPosition(keys []string, tables []Table) Table {
	rowCount := 0
	for _, table := range tables {
		rowCount = max(rowCount, table.RowCount())
	}

	var columns []Column
	for i, table := range tables {
		for _, column := range table.Columns {
			values := make([]any, rowCount)
			copy(values, column.Values)

			column.Label.Group = keys[i]
			column.Values = values
			columns = append(columns, column)
		}
	}

	return Table{Columns: columns}
}

func concatByIndex(keys []string, tables []Table) (Table, error) {
	indexNames := indexLabels(tables[0])
	for i, table := range tables[1:] {
		if !slices.Equal(indexLabels(table), indexNames) {
			return Table{}, fmt.Errorf(
				"index of table '%s' does not match index of table '%s'", keys[i+1], keys[0],
			)
		}
	}

	// Maps each distinct index key to its row in the output, in first-seen order.
	rowsByKey := make(map[string]int)
	var index []Column
	for _, column := range tables[0].Index {
		index = append(index, Column{Label: column.Label, DataType: column.DataType})
	}

	tableRows := make([][]int, len(tables))
	for i, table := range tables {
		tableRows[i] = make([]int, table.RowCount())
		seenInTable := make(map[string]struct{}, table.RowCount())

		for row := 0; row < table.RowCount(); row++ {
			key := indexKey(table, row)
			if _, duplicate := seenInTable[key]; duplicate {
				return Table{}, fmt.Errorf(
					"table '%s' has duplicate index value '%s' (row %d)",
					keys[i], formatIndexValues(table, row), row,
				)
			}
			seenInTable[key] = struct{}{}

			outputRow, exists := rowsByKey[key]
			if !exists {
				outputRow = len(rowsByKey)
				rowsByKey[key] = outputRow
				for j, column := range table.Index {
					index[j].Values = append(index[j].Values, column.Values[row])
				}
			}

			tableRows[i][row] = outputRow
		}
	}

	// Holds values of more than one type if the tables disagree on an index column's type.
	for _, table := range tables[1:] {
		for j, column := range table.Index {
			if column.DataType != index[j].DataType {
				index[j].DataType = DataTypeText
			}
		}
	}

	rowCount := len(rowsByKey)

	var columns []Column
	for i, table := range tables {
		for _, column := range table.Columns {
			values := make([]any, rowCount)
			for row, value := range column.Values {
				values[tableRows[i][row]] = value
			}

			column.Label.Group = keys[i]
			column.Values = values
			columns = append(columns, column)
		}
	}

	return Table{Index: index, Columns: columns}, nil
}

func indexLabels(table Table) []Label {
	labels := make([]Label, len(table.Index))
	for i, column := range table.Index {
		labels[i] = column.Label
	}
	return labels
}

// Includes each value's type, so values that print the same but differ in type stay apart.
func indexKey(table Table, row int) string {
	var key strings.Builder
	for i, column := range table.Index {
		if i != 0 {
			key.WriteByte(0)
		}
		fmt.Fprintf(&key, "%T:%v", column.Values[row], column.Values[row])
	}
	return key.String()
}

func formatIndexValues(table Table, row int) string {
	values := make([]string, len(table.Index))
	for i, column := range table.Index {
		values[i] = fmt.Sprint(column.Values[row])
	}
	return strings.Join(values, ", ")
}
