package api

import (
	"errors"
	"fmt"
	"net/http"

	"hermannm.dev/gaframes/analytics"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

type TableResponse struct {
	Table table.Table `json:"table"`
}

type CompareContextsRequest struct {
	Contexts       []ContextRequest `json:"contexts"`
	Params         map[string]any   `json:"params"`
	Index          []string         `json:"index"`
	CollapseLabels bool             `json:"collapseLabels"`
}

// Expects:
//   - body: JSON-encoded CompareContextsRequest, where every context has a unique label
//
// Returns:
//   - JSON-encoded TableResponse, with columns grouped by context label, or NoResultResponse if
//     none of the contexts had results
func (api GAFramesAPI) CompareContexts(res http.ResponseWriter, req *http.Request) {
	var request CompareContextsRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	if len(request.Contexts) == 0 {
		sendClientError(res, nil, "no contexts given to compare")
		return
	}

	labels := make(map[string]struct{}, len(request.Contexts))
	sources := make([]analytics.TableSource, len(request.Contexts))
	for i, contextRequest := range request.Contexts {
		if contextRequest.Label == "" {
			sendClientError(res, nil, fmt.Sprintf("context %d has no label", i))
			return
		}
		if _, duplicate := labels[contextRequest.Label]; duplicate {
			sendClientError(res, nil, fmt.Sprintf("duplicate context label '%s'", contextRequest.Label))
			return
		}
		labels[contextRequest.Label] = struct{}{}

		queryContext, err := api.newContext(contextRequest)
		if err != nil {
			sendClientError(res, err, fmt.Sprintf("invalid context %d", i))
			return
		}
		sources[i] = queryContext
	}

	overrides, err := query.FromParams(request.Params)
	if err != nil {
		sendClientError(res, err, "invalid query params")
		return
	}

	comparison, hasRows, err := analytics.CompareContexts(
		req.Context(),
		sources,
		overrides,
		analytics.CompareOptions{Index: request.Index, CollapseLabels: request.CollapseLabels},
	)
	sendComparison(res, comparison, hasRows, err)
}

type NamedParams struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

type CompareQueriesRequest struct {
	Context ContextRequest `json:"context"`
	// Either Queries or QuerySet must be given.
	Queries []NamedParams `json:"queries"`
	// Name of a query set from the configured query set file.
	QuerySet       string   `json:"querySet"`
	Index          []string `json:"index"`
	CollapseLabels bool     `json:"collapseLabels"`
}

// Expects:
//   - body: JSON-encoded CompareQueriesRequest
//
// Returns:
//   - JSON-encoded TableResponse, with columns grouped by query name, or NoResultResponse if none
//     of the queries had results
func (api GAFramesAPI) CompareQueries(res http.ResponseWriter, req *http.Request) {
	var request CompareQueriesRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	queryContext, err := api.newContext(request.Context)
	if err != nil {
		sendClientError(res, err, "invalid context")
		return
	}

	queries, err := api.namedQueries(request)
	if err != nil {
		sendClientError(res, err, "")
		return
	}

	comparison, hasRows, err := analytics.CompareQueries(
		req.Context(),
		queryContext,
		queries,
		analytics.CompareOptions{Index: request.Index, CollapseLabels: request.CollapseLabels},
	)
	sendComparison(res, comparison, hasRows, err)
}

func (api GAFramesAPI) namedQueries(request CompareQueriesRequest) ([]query.Named, error) {
	switch {
	case request.QuerySet != "" && len(request.Queries) != 0:
		return nil, errors.New("only one of 'queries' and 'querySet' may be given")
	case request.QuerySet != "":
		queries, ok := api.querySets[request.QuerySet]
		if !ok {
			return nil, fmt.Errorf("no query set named '%s'", request.QuerySet)
		}
		return queries, nil
	case len(request.Queries) != 0:
		queries := make([]query.Named, len(request.Queries))
		for i, named := range request.Queries {
			descriptor, err := query.FromParams(named.Params)
			if err != nil {
				return nil, wrap.Errorf(err, "invalid params for query '%s'", named.Name)
			}
			queries[i] = query.Named{Name: named.Name, Query: descriptor}
		}
		return queries, nil
	default:
		return nil, errors.New("one of 'queries' and 'querySet' must be given")
	}
}

// Returns:
//   - JSON-encoded query.QuerySets, in the order they were defined for each set
func (api GAFramesAPI) ListQuerySets(res http.ResponseWriter, req *http.Request) {
	if api.querySets == nil {
		sendJSON(res, query.QuerySets{})
		return
	}
	sendJSON(res, api.querySets)
}

type SegmentPivotRequest struct {
	// Falls back to the configured default view if blank.
	TargetID string                   `json:"ids"`
	Segments []analytics.NamedSegment `json:"segments"`
	// List of [start, end] pairs, one per row.
	DateRanges [][]string     `json:"dateRanges"`
	Params     map[string]any `json:"params"`
}

// Expects:
//   - body: JSON-encoded SegmentPivotRequest
//
// Returns:
//   - JSON-encoded TableResponse, with one row per date range and one column per segment
func (api GAFramesAPI) SegmentPivot(res http.ResponseWriter, req *http.Request) {
	var request SegmentPivotRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	dateRanges := make([]query.DateRange, len(request.DateRanges))
	for i, pair := range request.DateRanges {
		dateRange, err := query.DateRangeFromPair(pair)
		if err != nil {
			sendClientError(res, err, fmt.Sprintf("invalid date range %d", i))
			return
		}
		dateRanges[i] = dateRange
	}

	overrides, err := query.FromParams(request.Params)
	if err != nil {
		sendClientError(res, err, "invalid query params")
		return
	}

	pivot, err := analytics.SegmentPivot(
		req.Context(),
		api.executor,
		api.targetID(request.TargetID),
		request.Segments,
		dateRanges,
		overrides,
	)
	if err != nil {
		sendQueryError(res, err, "failed to build segment pivot")
		return
	}

	sendJSON(res, TableResponse{Table: pivot})
}

type NewPagesRequest struct {
	// Falls back to the configured default view if blank.
	TargetID string `json:"ids"`
	// [start, end] pairs.
	Baseline  []string       `json:"baseline"`
	Current   []string       `json:"current"`
	Params    map[string]any `json:"params"`
	KeyColumn string         `json:"keyColumn"`
}

// Expects:
//   - body: JSON-encoded NewPagesRequest
//
// Returns:
//   - JSON-encoded report.Result with the rows of the current period whose key was not seen in the
//     baseline period, or NoResultResponse if the current period had no results
func (api GAFramesAPI) NewPages(res http.ResponseWriter, req *http.Request) {
	var request NewPagesRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	baseline, err := query.DateRangeFromPair(request.Baseline)
	if err != nil {
		sendClientError(res, err, "invalid baseline date range")
		return
	}
	current, err := query.DateRangeFromPair(request.Current)
	if err != nil {
		sendClientError(res, err, "invalid current date range")
		return
	}

	overrides, err := query.FromParams(request.Params)
	if err != nil {
		sendClientError(res, err, "invalid query params")
		return
	}

	newPages, hasRows, err := analytics.FindNewPages(
		req.Context(),
		api.executor,
		api.targetID(request.TargetID),
		baseline,
		current,
		overrides,
		analytics.NewPagesOptions{KeyColumn: request.KeyColumn},
	)
	if err != nil {
		sendQueryError(res, err, "failed to find new pages")
		return
	}
	if !hasRows {
		sendNoResult(res)
		return
	}

	sendJSON(res, newPages)
}

func sendComparison(res http.ResponseWriter, comparison table.Table, hasRows bool, err error) {
	if err != nil {
		sendQueryError(res, err, "failed to run comparison")
		return
	}
	if !hasRows {
		sendNoResult(res)
		return
	}

	sendJSON(res, TableResponse{Table: comparison})
}
