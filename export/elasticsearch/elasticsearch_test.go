package elasticsearch

import (
	"context"
	"errors"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/typedapi/core/bulk"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/operationtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/table"
)

var testColumns = []export.Column{
	{Name: "pagePath", DataType: table.DataTypeText, Values: []any{"/a", "/b"}},
	{Name: "pageviews", DataType: table.DataTypeInt, Nullable: true, Values: []any{int64(3), nil}},
	{Name: "avgTimeOnPage", DataType: table.DataTypeFloat, Values: []any{1.5, 2.0}},
}

func TestColumnsToMappings(t *testing.T) {
	mappings, err := ColumnsToMappings(testColumns)
	require.NoError(t, err)

	require.Len(t, mappings.Properties, 3)
	assert.IsType(t, &types.KeywordProperty{}, mappings.Properties["pagePath"])
	assert.IsType(t, &types.LongNumberProperty{}, mappings.Properties["pageviews"])
	assert.IsType(t, &types.DoubleNumberProperty{}, mappings.Properties["avgTimeOnPage"])

	_, err = ColumnsToMappings([]export.Column{{Name: "broken"}})
	assert.ErrorContains(t, err, "column 'broken'")
}

func TestRowDocument(t *testing.T) {
	assert.Equal(
		t,
		map[string]any{"pagePath": "/a", "pageviews": int64(3), "avgTimeOnPage": 1.5},
		RowDocument(testColumns, 0),
	)
	assert.Equal(
		t,
		map[string]any{"pagePath": "/b", "avgTimeOnPage": 2.0},
		RowDocument(testColumns, 1),
	)
}

func TestValidateIndexName(t *testing.T) {
	assert.NoError(t, ValidateIndexName("sessions-by-country_2015"))

	for _, name := range []string{"", ".", "Sessions", "a b", "a/b", "a:b", "_hidden", "-dash"} {
		assert.Error(t, ValidateIndexName(name), name)
	}
}

func TestDropTableValidatesIndexName(t *testing.T) {
	// Never reaches the client, so a zero-value sink is enough
	var sink ElasticsearchSink

	for _, name := range []string{"", "Sessions", "a/b", "_hidden", "*"} {
		alreadyDropped, err := sink.DropTable(context.Background(), name)
		assert.Error(t, err, name)
		assert.False(t, alreadyDropped, name)
	}
}

func TestFormatElasticError(t *testing.T) {
	reason := "index [pages] already exists"
	rootReason := "root reason"
	err := &types.ElasticsearchError{
		ErrorCause: types.ErrorCause{
			Type:   elasticIndexAlreadyExistsException,
			Reason: &reason,
			RootCause: []types.ErrorCause{
				{Type: "root_type", Reason: &rootReason},
				{Type: "other_type"},
			},
		},
		Status: 400,
	}

	assert.True(t, isElasticErrorType(err, elasticIndexAlreadyExistsException))
	assert.False(t, isElasticErrorType(err, elasticIndexNotFoundException))
	assert.False(t, isElasticErrorType(errors.New("plain"), elasticIndexNotFoundException))

	formatted := formatElasticError(err).Error()
	assert.Contains(t, formatted, "index [pages] already exists (resource_already_exists_exception) (status 400)")
	assert.Contains(t, formatted, "root reason (root_type)")
	assert.Contains(t, formatted, "other_type")

	plain := errors.New("connection refused")
	assert.Equal(t, plain, formatElasticError(plain))
}

func TestBulkItemErrors(t *testing.T) {
	assert.NoError(t, bulkItemErrors(&bulk.Response{Errors: false}))

	reason := "document already exists"
	err := bulkItemErrors(&bulk.Response{
		Errors: true,
		Items: []map[operationtype.OperationType]types.ResponseItem{
			{operationtype.Create: {Status: 201}},
			{operationtype.Create: {Status: 409, Error: &types.ErrorCause{
				Type:   "version_conflict_engine_exception",
				Reason: &reason,
			}}},
		},
	})
	assert.ErrorContains(t, err, "document already exists (version_conflict_engine_exception)")
}
