package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/gaframes/api"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
	"hermannm.dev/gaframes/table"
)

type fakeExecutor struct {
	executed []query.Descriptor
	respond  func(descriptor query.Descriptor) (report.Response, error)
}

func (executor *fakeExecutor) Execute(
	ctx context.Context,
	descriptor query.Descriptor,
) (report.Response, error) {
	executor.executed = append(executor.executed, descriptor)
	return executor.respond(descriptor)
}

type fakeSink struct {
	exported map[string]table.Table
	dropped  []string
}

func (sink *fakeSink) ExportTable(ctx context.Context, name string, data table.Table) error {
	sink.exported[name] = data
	return nil
}

func (sink *fakeSink) DropTable(ctx context.Context, name string) (alreadyDropped bool, err error) {
	sink.dropped = append(sink.dropped, name)
	_, exists := sink.exported[name]
	delete(sink.exported, name)
	return !exists, nil
}

func newResponse(names []string, rows ...[]any) report.Response {
	headers := make([]report.ColumnHeader, len(names))
	for i, name := range names {
		headers[i] = report.ColumnHeader{Name: query.NamespacePrefix + name}
	}
	return report.Response{ID: "test-query", ColumnHeaders: headers, Rows: rows}
}

type testAPI struct {
	router   *http.ServeMux
	executor *fakeExecutor
	sink     *fakeSink
}

func newTestAPI(
	t *testing.T,
	querySets query.QuerySets,
	respond func(query.Descriptor) (report.Response, error),
) testAPI {
	t.Helper()

	executor := &fakeExecutor{respond: respond}
	sink := &fakeSink{exported: make(map[string]table.Table)}
	router := http.NewServeMux()

	api.NewGAFramesAPI(
		executor,
		querySets,
		map[config.SupportedSink]export.Sink{config.SinkClickHouse: sink},
		router,
		api.Config{Port: "8000", DefaultViewID: "1111", DefaultSink: config.SinkClickHouse},
	)

	return testAPI{router: router, executor: executor, sink: sink}
}

func (testAPI testAPI) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	bodyJSON, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bodyJSON))
	res := httptest.NewRecorder()
	testAPI.router.ServeHTTP(res, req)
	return res
}

func decodeResponse(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &decoded), res.Body.String())
	return decoded
}

var q1Context = map[string]any{
	"label":     "Q1",
	"dateRange": []string{"2015-01-01", "2015-03-31"},
}

func TestQuery(t *testing.T) {
	testAPI := newTestAPI(t, nil, func(query.Descriptor) (report.Response, error) {
		return newResponse(
			[]string{"country", "sessions"},
			[]any{"Norway", "10"},
			[]any{"Sweden", "5"},
		), nil
	})

	res := testAPI.post(t, "/query", map[string]any{
		"context": q1Context,
		"params": map[string]any{
			"metrics":    "ga:sessions",
			"dimensions": "ga:country",
			"maxResults": 10,
		},
		"index": []string{"country"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	body := decodeResponse(t, res)
	assert.Equal(t, "test-query", body["queryId"])
	assert.EqualValues(t, 2, body["rowCount"])

	descriptor := testAPI.executor.executed[0]
	assert.Equal(t, "ga:1111", descriptor.TargetID)
	assert.Equal(t, "2015-01-01", descriptor.StartDate)
	assert.Equal(t, []string{"ga:country"}, descriptor.Dimensions)
	assert.Equal(t, 10, descriptor.MaxResults)
}

func TestQueryDryRun(t *testing.T) {
	testAPI := newTestAPI(t, nil, nil)

	res := testAPI.post(t, "/query", map[string]any{
		"context": map[string]any{
			"ids":       "ga:2222",
			"startDate": "7daysAgo",
			"endDate":   "today",
			"defaults":  map[string]any{"dimensions": []string{"ga:date"}},
		},
		"params": map[string]any{"metrics": []string{"ga:users"}},
		"dryRun": true,
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Empty(t, testAPI.executor.executed)

	var dryRun api.DryRunResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &dryRun))
	assert.Equal(t, query.Descriptor{
		TargetID:      "ga:2222",
		StartDate:     "7daysAgo",
		EndDate:       "today",
		Metrics:       []string{"ga:users"},
		Dimensions:    []string{"ga:date"},
		Sort:          []string{"-ga:users"},
		SamplingLevel: query.SamplingHigherPrecision,
		MaxResults:    query.DefaultMaxResults,
	}, dryRun.Query)
}

func TestQueryNoResult(t *testing.T) {
	testAPI := newTestAPI(t, nil, func(query.Descriptor) (report.Response, error) {
		return newResponse([]string{"sessions"}), nil
	})

	res := testAPI.post(t, "/query", map[string]any{"context": q1Context})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, map[string]any{"noResult": true}, decodeResponse(t, res))
}

func TestQueryClientErrors(t *testing.T) {
	testAPI := newTestAPI(t, nil, nil)

	for name, body := range map[string]any{
		"unrecognized param": map[string]any{
			"context": q1Context,
			"params":  map[string]any{"metricz": "ga:sessions"},
		},
		"missing end date": map[string]any{
			"context": map[string]any{"startDate": "2015-01-01"},
		},
		"invalid date": map[string]any{
			"context": q1Context,
			"params":  map[string]any{"startDate": "01/01/2015", "endDate": "today"},
		},
		"invalid sampling level": map[string]any{
			"context": q1Context,
			"params":  map[string]any{"samplingLevel": "slowest"},
		},
	} {
		res := testAPI.post(t, "/query", body)
		assert.Equal(t, http.StatusBadRequest, res.Code, name)
	}

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte("{")))
	res := httptest.NewRecorder()
	testAPI.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	assert.Empty(t, testAPI.executor.executed)
}

func TestQueryExecutorError(t *testing.T) {
	testAPI := newTestAPI(t, nil, func(query.Descriptor) (report.Response, error) {
		return report.Response{}, errors.New("rate limit exceeded")
	})

	res := testAPI.post(t, "/query", map[string]any{"context": q1Context})
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Contains(t, res.Body.String(), "rate limit exceeded")
}

func TestQueryOne(t *testing.T) {
	testAPI := newTestAPI(t, nil, func(descriptor query.Descriptor) (report.Response, error) {
		if len(descriptor.Dimensions) != 0 {
			return newResponse([]string{"country", "sessions"}, []any{"Norway", "10"}), nil
		}
		return newResponse([]string{"sessions"}, []any{"42"}), nil
	})

	res := testAPI.post(t, "/query-one", map[string]any{
		"context": q1Context,
		"params":  map[string]any{"metrics": "ga:sessions"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, map[string]any{"value": float64(42)}, decodeResponse(t, res))
	assert.Empty(t, testAPI.executor.executed[0].Sort)

	res = testAPI.post(t, "/query-one", map[string]any{
		"context": q1Context,
		"params":  map[string]any{"dimensions": "ga:country"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())

	var notScalar api.NotScalarResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &notScalar))
	assert.Contains(t, notScalar.Error, "1 row")
	assert.Len(t, notScalar.Table.Columns, 2)
}

func TestQueryRaw(t *testing.T) {
	testAPI := newTestAPI(t, nil, func(query.Descriptor) (report.Response, error) {
		return newResponse([]string{"pageviews"}, []any{"12"}), nil
	})

	res := testAPI.post(t, "/query-raw", map[string]any{"context": q1Context})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var raw report.Response
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &raw))
	assert.Equal(t, "ga:pageviews", raw.ColumnHeaders[0].Name)
	assert.Equal(t, [][]any{{"12"}}, raw.Rows)
}

func TestExport(t *testing.T) {
	testAPI := newTestAPI(t, nil, func(query.Descriptor) (report.Response, error) {
		return newResponse([]string{"pagePath", "pageviews"}, []any{"/a", "3"}), nil
	})
	body := map[string]any{"context": q1Context, "params": map[string]any{"dimensions": "ga:pagePath"}}

	res := testAPI.post(t, "/export?name=pages", body)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(
		t,
		map[string]any{"name": "pages", "sink": "clickhouse", "rowCount": float64(1)},
		decodeResponse(t, res),
	)
	assert.Equal(t, 1, testAPI.sink.exported["pages"].RowCount())

	res = testAPI.post(t, "/export?name=pages&sink=clickhouse&replace=true", body)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, []string{"pages"}, testAPI.sink.dropped)

	res = testAPI.post(t, "/export?name=pages&sink=elasticsearch", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "not configured")

	res = testAPI.post(t, "/export", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
