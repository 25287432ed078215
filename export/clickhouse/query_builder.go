package clickhouse

import (
	"errors"
	"fmt"
	"strings"

	"hermannm.dev/enumnames"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

type QueryBuilder struct {
	strings.Builder
}

// Must only be called after calling ValidateIdentifier/ValidateIdentifiers on the given identifier.
func (builder *QueryBuilder) WriteIdentifier(identifier string) {
	builder.WriteRune('`')
	builder.WriteString(identifier)
	builder.WriteRune('`')
}

func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return errors.New("identifier cannot be blank")
	}
	if strings.ContainsRune(identifier, '`') {
		return fmt.Errorf("'%s' contains `, which is incompatible with database", identifier)
	}

	return nil
}

func ValidateIdentifiers(identifiers ...string) error {
	for _, identifier := range identifiers {
		if err := ValidateIdentifier(identifier); err != nil {
			return err
		}
	}

	return nil
}

// See https://clickhouse.com/docs/en/sql-reference/data-types
var clickhouseDataTypes = enumnames.NewMap(map[table.DataType]string{
	table.DataTypeInt:   "Int64",
	table.DataTypeFloat: "Float64",
	table.DataTypeText:  "String",
})

const idColumn = "id"

// BuildCreateTableQuery builds a CREATE TABLE IF NOT EXISTS statement for the given columns,
// preceded by a UUID id column that is used as the primary key.
func BuildCreateTableQuery(name string, columns []export.Column) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("CREATE TABLE IF NOT EXISTS ")
	query.WriteIdentifier(name)
	query.WriteString(" (")
	query.WriteIdentifier(idColumn)
	query.WriteString(" UUID")

	for _, column := range columns {
		if column.Name == idColumn {
			return "", fmt.Errorf("column name '%s' is reserved for row IDs", idColumn)
		}
		if err := ValidateIdentifier(column.Name); err != nil {
			return "", wrap.Error(err, "invalid column name")
		}

		dataType, ok := clickhouseDataTypes.GetName(column.DataType)
		if !ok {
			return "", fmt.Errorf("invalid data type '%v' in column '%s'", column.DataType, column.Name)
		}

		query.WriteString(", ")
		query.WriteIdentifier(column.Name)
		query.WriteRune(' ')
		if column.Nullable {
			query.WriteString("Nullable(")
			query.WriteString(dataType)
			query.WriteRune(')')
		} else {
			query.WriteString(dataType)
		}
	}

	query.WriteString(") ENGINE = MergeTree() PRIMARY KEY (")
	query.WriteIdentifier(idColumn)
	query.WriteRune(')')

	return query.String(), nil
}

// BuildInsertQuery builds the INSERT statement that batches for the given columns are prepared
// with.
func BuildInsertQuery(name string, columns []export.Column) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", wrap.Error(err, "invalid table name")
	}

	columnNames := make([]string, len(columns))
	for i, column := range columns {
		columnNames[i] = column.Name
	}
	if err := ValidateIdentifiers(columnNames...); err != nil {
		return "", wrap.Error(err, "invalid column name")
	}

	var query QueryBuilder
	query.WriteString("INSERT INTO ")
	query.WriteIdentifier(name)
	query.WriteString(" (")
	query.WriteIdentifier(idColumn)
	for _, columnName := range columnNames {
		query.WriteString(", ")
		query.WriteIdentifier(columnName)
	}
	query.WriteRune(')')

	return query.String(), nil
}
