package table_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/gaframes/table"
)

func pagesTable(t *testing.T) table.Table {
	t.Helper()

	pages, err := table.New(
		table.NewColumn("pagePath", []any{"/a", "/b", "/c"}),
		table.NewColumn("pageviews", []any{"10", "5", "1"}),
	)
	require.NoError(t, err)
	return pages
}

func TestNewRejectsRaggedColumns(t *testing.T) {
	_, err := table.New(
		table.NewColumn("a", []any{"1", "2"}),
		table.NewColumn("b", []any{"1"}),
	)
	assert.Error(t, err)
}

func TestNewRejectsDuplicateLabels(t *testing.T) {
	_, err := table.New(
		table.NewColumn("a", []any{"1"}),
		table.NewColumn("a", []any{"2"}),
	)
	assert.Error(t, err)
}

func TestScalar(t *testing.T) {
	single, err := table.New(table.NewColumn("pageviews", []any{"1234"}))
	require.NoError(t, err)

	value, err := single.Scalar()
	require.NoError(t, err)
	assert.Equal(t, int64(1234), value)

	pages := pagesTable(t)
	_, err = pages.Scalar()

	var notScalarErr table.NotScalarError
	require.True(t, errors.As(err, &notScalarErr))
	assert.Equal(t, pages, notScalarErr.Table)
	assert.Contains(t, err.Error(), "/b")
}

func TestSetIndex(t *testing.T) {
	indexed, err := pagesTable(t).SetIndex("pagePath")
	require.NoError(t, err)

	require.Len(t, indexed.Index, 1)
	assert.Equal(t, "pagePath", indexed.Index[0].Label.Name)
	assert.Equal(t, []table.Label{{Name: "pageviews"}}, indexed.Labels())
	assert.Equal(t, 3, indexed.RowCount())

	_, err = pagesTable(t).SetIndex("missing")
	assert.Error(t, err)
}

func TestWithHeadingAndCollapse(t *testing.T) {
	headed := pagesTable(t).WithHeading("Q1")
	assert.Equal(
		t,
		[]table.Label{{Group: "Q1", Name: "pagePath"}, {Group: "Q1", Name: "pageviews"}},
		headed.Labels(),
	)

	collapsed := headed.CollapseLabels()
	assert.Equal(
		t,
		[]table.Label{{Name: "Q1: pagePath"}, {Name: "Q1: pageviews"}},
		collapsed.Labels(),
	)

	column, ok := headed.Column("Q1: pageviews")
	require.True(t, ok)
	assert.Equal(t, table.DataTypeInt, column.DataType)
}

func TestFilterRows(t *testing.T) {
	pages := pagesTable(t)
	pagePaths, ok := pages.Column("pagePath")
	require.True(t, ok)

	filtered := pages.FilterRows(func(row int) bool {
		return pagePaths.Values[row] != "/b"
	})

	assert.Equal(t, 2, filtered.RowCount())
	assert.Equal(t, []any{"/a", "/c"}, filtered.Columns[0].Values)
	assert.Equal(t, []any{int64(10), int64(1)}, filtered.Columns[1].Values)
}

func TestConcatByPosition(t *testing.T) {
	first, err := table.New(table.NewColumn("pageviews", []any{"1", "2"}))
	require.NoError(t, err)
	second, err := table.New(table.NewColumn("pageviews", []any{"3"}))
	require.NoError(t, err)

	concatenated, err := table.Concat([]string{"Q1", "Q2"}, []table.Table{first, second})
	require.NoError(t, err)

	assert.Equal(
		t,
		[]table.Label{{Group: "Q1", Name: "pageviews"}, {Group: "Q2", Name: "pageviews"}},
		concatenated.Labels(),
	)
	assert.Equal(t, []any{int64(3), nil}, concatenated.Columns[1].Values)
}

func TestConcatByIndex(t *testing.T) {
	first, err := table.New(
		table.NewColumn("pagePath", []any{"/a", "/b"}),
		table.NewColumn("pageviews", []any{"10", "20"}),
	)
	require.NoError(t, err)
	first, err = first.SetIndex("pagePath")
	require.NoError(t, err)

	second, err := table.New(
		table.NewColumn("pagePath", []any{"/b", "/c"}),
		table.NewColumn("pageviews", []any{"2", "3"}),
	)
	require.NoError(t, err)
	second, err = second.SetIndex("pagePath")
	require.NoError(t, err)

	concatenated, err := table.Concat([]string{"Q1", "Q2"}, []table.Table{first, second})
	require.NoError(t, err)

	assert.Equal(t, []any{"/a", "/b", "/c"}, concatenated.Index[0].Values)
	assert.Equal(t, []any{int64(10), int64(20), nil}, concatenated.Columns[0].Values)
	assert.Equal(t, []any{nil, int64(2), int64(3)}, concatenated.Columns[1].Values)
}

func TestConcatRejectsRepeatedIndexValues(t *testing.T) {
	first, err := table.New(
		table.NewColumn("pagePath", []any{"/a", "/a", "/b"}),
		table.NewColumn("pageviews", []any{"10", "20", "30"}),
	)
	require.NoError(t, err)
	first, err = first.SetIndex("pagePath")
	require.NoError(t, err)

	second, err := table.New(
		table.NewColumn("pagePath", []any{"/a"}),
		table.NewColumn("pageviews", []any{"5"}),
	)
	require.NoError(t, err)
	second, err = second.SetIndex("pagePath")
	require.NoError(t, err)

	_, err = table.Concat([]string{"Q1", "Q2"}, []table.Table{first, second})
	assert.ErrorContains(t, err, "table 'Q1' has duplicate index value '/a'")

	_, err = table.Concat([]string{"Q2", "Q1"}, []table.Table{second, first})
	assert.ErrorContains(t, err, "table 'Q1' has duplicate index value '/a'")
}

func TestConcatByMultiColumnIndex(t *testing.T) {
	first, err := table.New(
		table.NewColumn("pagePath", []any{"/a", "/a"}),
		table.NewColumn("pageTitle", []any{"Home", "Start"}),
		table.NewColumn("pageviews", []any{"10", "20"}),
	)
	require.NoError(t, err)
	first, err = first.SetIndex("pagePath", "pageTitle")
	require.NoError(t, err)

	second, err := table.New(
		table.NewColumn("pagePath", []any{"/a"}),
		table.NewColumn("pageTitle", []any{"Home"}),
		table.NewColumn("pageviews", []any{"5"}),
	)
	require.NoError(t, err)
	second, err = second.SetIndex("pagePath", "pageTitle")
	require.NoError(t, err)

	concatenated, err := table.Concat([]string{"Q1", "Q2"}, []table.Table{first, second})
	require.NoError(t, err)

	assert.Equal(t, []any{"/a", "/a"}, concatenated.Index[0].Values)
	assert.Equal(t, []any{"Home", "Start"}, concatenated.Index[1].Values)
	assert.Equal(t, []any{int64(10), int64(20)}, concatenated.Columns[0].Values)
	assert.Equal(t, []any{int64(5), nil}, concatenated.Columns[1].Values)
}

func TestConcatByIndexKeepsTypesApart(t *testing.T) {
	first := table.Table{
		Index: []table.Column{
			{Label: table.Label{Name: "code"}, DataType: table.DataTypeInt, Values: []any{int64(1)}},
		},
		Columns: []table.Column{
			{Label: table.Label{Name: "sessions"}, DataType: table.DataTypeInt, Values: []any{int64(10)}},
		},
	}
	second := table.Table{
		Index: []table.Column{
			{Label: table.Label{Name: "code"}, DataType: table.DataTypeText, Values: []any{"1"}},
		},
		Columns: []table.Column{
			{Label: table.Label{Name: "sessions"}, DataType: table.DataTypeInt, Values: []any{int64(7)}},
		},
	}

	concatenated, err := table.Concat([]string{"Q1", "Q2"}, []table.Table{first, second})
	require.NoError(t, err)

	assert.Equal(t, []any{int64(1), "1"}, concatenated.Index[0].Values)
	assert.Equal(t, table.DataTypeText, concatenated.Index[0].DataType)
	assert.Equal(t, []any{int64(10), nil}, concatenated.Columns[0].Values)
	assert.Equal(t, []any{nil, int64(7)}, concatenated.Columns[1].Values)
}

func TestConcatRejectsDuplicateKeys(t *testing.T) {
	pages := pagesTable(t)
	_, err := table.Concat([]string{"Q1", "Q1"}, []table.Table{pages, pages})
	assert.Error(t, err)
}

func TestConcatRejectsMixedIndexing(t *testing.T) {
	pages := pagesTable(t)
	indexed, err := pages.SetIndex("pagePath")
	require.NoError(t, err)

	_, err = table.Concat([]string{"Q1", "Q2"}, []table.Table{pages, indexed})
	assert.Error(t, err)
}

func TestTableJSON(t *testing.T) {
	single, err := table.New(table.NewColumn("pageviews", []any{"7"}))
	require.NoError(t, err)

	encoded, err := json.Marshal(single)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"columns":[{"label":{"name":"pageviews"},"dataType":"INTEGER","values":[7]}]}`,
		string(encoded),
	)
}
