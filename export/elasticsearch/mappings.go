package elasticsearch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

// ColumnsToMappings maps each column to a keyword, long or double property.
func ColumnsToMappings(columns []export.Column) (*types.TypeMapping, error) {
	mappings := types.NewTypeMapping()
	mappings.Properties = make(map[string]types.Property, len(columns))

	for _, column := range columns {
		property, err := dataTypeToElasticProperty(column.DataType)
		if err != nil {
			return nil, wrap.Errorf(
				err,
				"failed to convert data type to Elasticsearch property for column '%s'",
				column.Name,
			)
		}

		mappings.Properties[column.Name] = property
	}

	return mappings, nil
}

func dataTypeToElasticProperty(dataType table.DataType) (types.Property, error) {
	switch dataType {
	case table.DataTypeText:
		return types.NewKeywordProperty(), nil
	case table.DataTypeInt:
		return types.NewLongNumberProperty(), nil
	case table.DataTypeFloat:
		return types.NewDoubleNumberProperty(), nil
	default:
		return nil, fmt.Errorf("unrecognized data type '%v'", dataType)
	}
}

// RowDocument returns the given row as a document keyed by column name. Nil values are left out.
func RowDocument(columns []export.Column, row int) map[string]any {
	document := make(map[string]any, len(columns))
	for _, column := range columns {
		if value := column.Values[row]; value != nil {
			document[column.Name] = value
		}
	}
	return document
}

// See https://www.elastic.co/guide/en/elasticsearch/reference/8.10/indices-create-index.html#indices-create-api-path-params
const invalidIndexNameChars = `\/*?"<>| ,#:`

func ValidateIndexName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("'%s' is not a valid index name", name)
	case strings.ToLower(name) != name:
		return fmt.Errorf("index name '%s' must be lowercase", name)
	case strings.ContainsAny(name, invalidIndexNameChars):
		return fmt.Errorf("index name '%s' cannot contain any of %s", name, invalidIndexNameChars)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "_"), strings.HasPrefix(name, "+"):
		return errors.New("index name cannot start with '-', '_' or '+'")
	}

	return nil
}
