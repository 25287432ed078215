package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/analytics"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/query"
)

type QueryRequest struct {
	Context ContextRequest `json:"context"`
	// Loosely typed query parameters, see query.FromParams.
	Params      map[string]any `json:"params"`
	Index       []string       `json:"index"`
	ShowHeading bool           `json:"showHeading"`
	Heading     string         `json:"heading"`
	// Responds with the merged query instead of running it.
	DryRun bool `json:"dryRun"`
}

type DryRunResponse struct {
	Query query.Descriptor `json:"query"`
}

type ValueResponse struct {
	Value any `json:"value"`
}

// Expects:
//   - body: JSON-encoded QueryRequest
//
// Returns:
//   - JSON-encoded report.Result, or NoResultResponse if the query had no rows
//   - DryRunResponse if dryRun is set
func (api GAFramesAPI) Query(res http.ResponseWriter, req *http.Request) {
	var request QueryRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	queryContext, overrides, err := api.parseQueryRequest(request)
	if err != nil {
		sendClientError(res, err, "invalid query request")
		return
	}

	if request.DryRun {
		descriptor, err := queryContext.Descriptor(overrides)
		if err != nil {
			sendClientError(res, err, "")
			return
		}
		sendJSON(res, DryRunResponse{Query: descriptor})
		return
	}

	result, hasRows, err := queryContext.Get(req.Context(), overrides, request.getOptions())
	if err != nil {
		sendQueryError(res, err, "failed to run query")
		return
	}
	if !hasRows {
		sendNoResult(res)
		return
	}

	sendJSON(res, result)
}

// Expects:
//   - body: JSON-encoded QueryRequest (index and heading fields are ignored)
//
// Returns:
//   - JSON-encoded ValueResponse, or NoResultResponse if the query had no rows
//   - NotScalarResponse with status 422 if the query returned more than one value
func (api GAFramesAPI) QueryOne(res http.ResponseWriter, req *http.Request) {
	var request QueryRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	queryContext, overrides, err := api.parseQueryRequest(request)
	if err != nil {
		sendClientError(res, err, "invalid query request")
		return
	}

	value, hasResult, err := queryContext.GetOne(req.Context(), overrides)
	if err != nil {
		sendQueryError(res, err, "failed to run query")
		return
	}
	if !hasResult {
		sendNoResult(res)
		return
	}

	sendJSON(res, ValueResponse{Value: value})
}

// Expects:
//   - body: JSON-encoded QueryRequest (index and heading fields are ignored)
//
// Returns:
//   - JSON-encoded report.Response, as received from the reporting API
func (api GAFramesAPI) QueryRaw(res http.ResponseWriter, req *http.Request) {
	var request QueryRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	queryContext, overrides, err := api.parseQueryRequest(request)
	if err != nil {
		sendClientError(res, err, "invalid query request")
		return
	}

	response, err := queryContext.GetRaw(req.Context(), overrides)
	if err != nil {
		sendQueryError(res, err, "failed to run query")
		return
	}

	sendJSON(res, response)
}

type ExportResponse struct {
	Name     string `json:"name"`
	Sink     string `json:"sink"`
	RowCount int    `json:"rowCount"`
}

// Expects:
//   - query parameter 'name': name of table (or index) to export to
//   - query parameter 'sink' (optional): one of 'clickhouse', 'elasticsearch', 'csv'; defaults to
//     the configured sink
//   - query parameter 'replace' (optional): if 'true', the table is dropped before exporting
//   - body: JSON-encoded QueryRequest
//
// Returns:
//   - JSON-encoded ExportResponse, or NoResultResponse if the query had no rows
func (api GAFramesAPI) Export(res http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if name == "" {
		sendClientError(res, nil, "missing 'name' query parameter in request")
		return
	}

	sinkName := api.config.DefaultSink
	if param := req.URL.Query().Get("sink"); param != "" {
		var ok bool
		if sinkName, ok = config.ParseSink(param); !ok {
			sendClientError(res, nil, fmt.Sprintf("unrecognized sink '%s'", param))
			return
		}
	}
	sink, ok := api.sinks[sinkName]
	if !ok {
		sendClientError(res, nil, fmt.Sprintf("export sink '%s' is not configured", sinkName))
		return
	}

	var request QueryRequest
	if err := decodeBody(req, &request); err != nil {
		sendClientError(res, err, "")
		return
	}

	queryContext, overrides, err := api.parseQueryRequest(request)
	if err != nil {
		sendClientError(res, err, "invalid query request")
		return
	}

	result, hasRows, err := queryContext.Get(req.Context(), overrides, request.getOptions())
	if err != nil {
		sendQueryError(res, err, "failed to run query")
		return
	}
	if !hasRows {
		sendNoResult(res)
		return
	}

	if req.URL.Query().Get("replace") == "true" {
		alreadyDropped, err := sink.DropTable(req.Context(), name)
		if err != nil {
			sendServerError(res, err, fmt.Sprintf("failed to drop '%s' before export", name))
			return
		}
		if !alreadyDropped {
			log.Info("dropped table before export", slog.String("table", name))
		}
	}

	if err := sink.ExportTable(req.Context(), name, result.Table); err != nil {
		sendServerError(res, err, fmt.Sprintf("failed to export to '%s'", name))
		return
	}

	sendJSON(res, ExportResponse{Name: name, Sink: sinkName.String(), RowCount: result.RowCount})
}

func (api GAFramesAPI) parseQueryRequest(
	request QueryRequest,
) (*analytics.Context, query.Descriptor, error) {
	queryContext, err := api.newContext(request.Context)
	if err != nil {
		return nil, query.Descriptor{}, err
	}

	overrides, err := query.FromParams(request.Params)
	if err != nil {
		return nil, query.Descriptor{}, err
	}

	return queryContext, overrides, nil
}

func (request QueryRequest) getOptions() analytics.GetOptions {
	return analytics.GetOptions{
		Index:       request.Index,
		ShowHeading: request.ShowHeading,
		Heading:     request.Heading,
	}
}
