package api

import (
	"fmt"
	"net/http"
	"strings"

	"hermannm.dev/gaframes/analytics"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/wrap"
)

type GAFramesAPI struct {
	executor  analytics.Executor
	querySets query.QuerySets
	sinks     map[config.SupportedSink]export.Sink
	router    *http.ServeMux
	config    Config
}

type Config struct {
	Port string
	// Used for requests that do not specify a target ID. Optional.
	DefaultViewID string
	// Used by the export endpoint when the request does not name a sink.
	DefaultSink config.SupportedSink
}

// NewGAFramesAPI registers the API's endpoints on the given router. querySets and sinks may be
// empty, in which case the endpoints that need them respond with client errors.
func NewGAFramesAPI(
	executor analytics.Executor,
	querySets query.QuerySets,
	sinks map[config.SupportedSink]export.Sink,
	router *http.ServeMux,
	config Config,
) GAFramesAPI {
	api := GAFramesAPI{
		executor:  executor,
		querySets: querySets,
		sinks:     sinks,
		router:    router,
		config:    config,
	}

	api.router.HandleFunc("POST /query", api.Query)
	api.router.HandleFunc("POST /query-one", api.QueryOne)
	api.router.HandleFunc("POST /query-raw", api.QueryRaw)
	api.router.HandleFunc("POST /compare-contexts", api.CompareContexts)
	api.router.HandleFunc("POST /compare-queries", api.CompareQueries)
	api.router.HandleFunc("GET /query-sets", api.ListQuerySets)
	api.router.HandleFunc("POST /segment-pivot", api.SegmentPivot)
	api.router.HandleFunc("POST /new-pages", api.NewPages)
	api.router.HandleFunc("POST /export", api.Export)

	return api
}

func (api GAFramesAPI) ListenAndServe() error {
	return http.ListenAndServe(fmt.Sprintf(":%s", api.config.Port), api.router)
}

// ContextRequest identifies a data source and date range, like analytics.ContextConfig, but with
// defaults given as loosely typed query parameters.
type ContextRequest struct {
	// Falls back to the configured default view if blank.
	TargetID  string         `json:"ids"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	DateRange []string       `json:"dateRange"`
	Label     string         `json:"label"`
	Defaults  map[string]any `json:"defaults"`
}

// newContext fails only for problems with the request.
func (api GAFramesAPI) newContext(request ContextRequest) (*analytics.Context, error) {
	defaults, err := query.FromParams(request.Defaults)
	if err != nil {
		return nil, wrap.Error(err, "invalid context defaults")
	}

	return analytics.NewContext(api.executor, analytics.ContextConfig{
		TargetID:  api.targetID(request.TargetID),
		StartDate: request.StartDate,
		EndDate:   request.EndDate,
		DateRange: request.DateRange,
		Label:     request.Label,
		Defaults:  defaults,
	})
}

// targetID falls back to the configured default view, and adds the namespace prefix to bare view
// IDs.
func (api GAFramesAPI) targetID(requested string) string {
	targetID := requested
	if targetID == "" {
		targetID = api.config.DefaultViewID
	}
	if targetID == "" || strings.HasPrefix(targetID, query.NamespacePrefix) {
		return targetID
	}
	return query.NamespacePrefix + targetID
}
