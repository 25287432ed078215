package ga_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/analytics/v3"
	"google.golang.org/api/option"
	"hermannm.dev/gaframes/ga"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *ga.Service {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := ga.NewService(
		context.Background(), server.Client(), option.WithEndpoint(server.URL+"/"),
	)
	require.NoError(t, err)
	return service
}

func TestExecute(t *testing.T) {
	var params url.Values
	service := newTestService(t, func(res http.ResponseWriter, req *http.Request) {
		params = req.URL.Query()

		res.Header().Set("Content-Type", "application/json")
		json.NewEncoder(res).Encode(map[string]any{
			"id": "query-1",
			"columnHeaders": []map[string]string{
				{"name": "ga:country", "columnType": "DIMENSION", "dataType": "STRING"},
				{"name": "ga:sessions", "columnType": "METRIC", "dataType": "INTEGER"},
			},
			"rows":                [][]string{{"Norway", "10"}, {"Sweden", "5"}},
			"containsSampledData": true,
			"totalResults":        2,
			"itemsPerPage":        50,
		})
	})

	response, err := service.Execute(context.Background(), query.Descriptor{
		TargetID:      "ga:1111",
		StartDate:     "2015-01-01",
		EndDate:       "2015-03-31",
		Metrics:       []string{"ga:sessions", "ga:users"},
		Dimensions:    []string{"ga:country"},
		Filters:       "ga:country!=Denmark",
		Sort:          []string{"-ga:sessions", "ga:country"},
		SamplingLevel: query.SamplingFaster,
		Segment:       "gaid::-1",
		MaxResults:    50,
	})
	require.NoError(t, err)

	assert.Equal(t, "ga:1111", params.Get("ids"))
	assert.Equal(t, "2015-01-01", params.Get("start-date"))
	assert.Equal(t, "2015-03-31", params.Get("end-date"))
	assert.Equal(t, "ga:sessions,ga:users", params.Get("metrics"))
	assert.Equal(t, "ga:country", params.Get("dimensions"))
	assert.Equal(t, "ga:country!=Denmark", params.Get("filters"))
	assert.Equal(t, "-ga:sessions,ga:country", params.Get("sort"))
	assert.Equal(t, "FASTER", params.Get("samplingLevel"))
	assert.Equal(t, "gaid::-1", params.Get("segment"))
	assert.Equal(t, "50", params.Get("max-results"))

	assert.Equal(t, report.Response{
		ID: "query-1",
		ColumnHeaders: []report.ColumnHeader{
			{Name: "ga:country", ColumnType: "DIMENSION", DataType: "STRING"},
			{Name: "ga:sessions", ColumnType: "METRIC", DataType: "INTEGER"},
		},
		Rows:                [][]any{{"Norway", "10"}, {"Sweden", "5"}},
		ContainsSampledData: true,
		TotalResults:        2,
		ItemsPerPage:        50,
	}, response)
}

func TestExecuteOmitsUnsetParams(t *testing.T) {
	var params url.Values
	service := newTestService(t, func(res http.ResponseWriter, req *http.Request) {
		params = req.URL.Query()
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte(`{"id": "query-2", "columnHeaders": [{"name": "ga:pageviews"}]}`))
	})

	response, err := service.Execute(context.Background(), query.Descriptor{
		TargetID:  "ga:1111",
		StartDate: "today",
		EndDate:   "today",
		Metrics:   []string{"ga:pageviews"},
	})
	require.NoError(t, err)

	for _, name := range []string{"dimensions", "filters", "sort", "samplingLevel", "segment", "max-results"} {
		assert.False(t, params.Has(name), name)
	}
	assert.Empty(t, response.Rows)
}

func TestExecuteAPIError(t *testing.T) {
	service := newTestService(t, func(res http.ResponseWriter, req *http.Request) {
		res.Header().Set("Content-Type", "application/json")
		res.WriteHeader(http.StatusForbidden)
		res.Write([]byte(`{"error": {"code": 403, "message": "User does not have sufficient permissions"}}`))
	})

	_, err := service.Execute(context.Background(), query.Descriptor{
		TargetID:  "ga:1111",
		StartDate: "today",
		EndDate:   "today",
		Metrics:   []string{"ga:pageviews"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "403")
	assert.ErrorContains(t, err, "sufficient permissions")
}

func TestResponseFromData(t *testing.T) {
	response := ga.ResponseFromData(&analytics.GaData{
		Id:            "query-3",
		ColumnHeaders: []*analytics.GaDataColumnHeaders{{Name: "ga:users"}, nil},
	})

	assert.Equal(t, "query-3", response.ID)
	assert.Equal(t, []report.ColumnHeader{{Name: "ga:users"}}, response.ColumnHeaders)
	assert.Nil(t, response.Rows)
}
