package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/analytics"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

func sendClientError(res http.ResponseWriter, err error, message string) {
	message = errorMessage(err, message)
	log.Debug("rejected request", slog.String("error", message))
	http.Error(res, message, http.StatusBadRequest)
}

func sendServerError(res http.ResponseWriter, err error, message string) {
	log.ErrorCause(err, message)
	http.Error(res, errorMessage(err, message), http.StatusInternalServerError)
}

// NotScalarResponse is sent with status 422 when a single value was requested, but the query
// returned a table.
type NotScalarResponse struct {
	Error string      `json:"error"`
	Table table.Table `json:"table"`
}

// sendQueryError picks the response status from the kind of error: problems with the request are
// client errors, failures to execute it are server errors.
func sendQueryError(res http.ResponseWriter, err error, message string) {
	var notScalarErr table.NotScalarError
	if errors.As(err, &notScalarErr) {
		sendJSONWithStatus(res, http.StatusUnprocessableEntity, NotScalarResponse{
			Error: errorMessage(err, message),
			Table: notScalarErr.Table,
		})
		return
	}

	if isClientError(err) {
		sendClientError(res, err, message)
	} else {
		sendServerError(res, err, message)
	}
}

func isClientError(err error) bool {
	var configErr analytics.ConfigError
	var invalidQueryErr query.InvalidQueryError
	var unrecognizedParamErr query.UnrecognizedParamError

	return errors.As(err, &configErr) ||
		errors.As(err, &invalidQueryErr) ||
		errors.As(err, &unrecognizedParamErr)
}

func errorMessage(err error, message string) string {
	if err == nil {
		return message
	}
	if message == "" {
		return err.Error()
	}
	return wrap.Error(err, message).Error()
}

func sendJSON(res http.ResponseWriter, value any) {
	sendJSONWithStatus(res, http.StatusOK, value)
}

func sendJSONWithStatus(res http.ResponseWriter, statusCode int, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		sendServerError(res, err, "failed to serialize response")
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	if _, err := res.Write(body); err != nil {
		log.ErrorCause(err, "failed to write response")
	}
}

func decodeBody(req *http.Request, target any) error {
	if err := json.NewDecoder(req.Body).Decode(target); err != nil {
		return wrap.Error(err, "failed to parse request body")
	}
	return nil
}

// NoResultResponse is sent when a query returned no rows.
type NoResultResponse struct {
	NoResult bool `json:"noResult"`
}

func sendNoResult(res http.ResponseWriter) {
	sendJSON(res, NoResultResponse{NoResult: true})
}
