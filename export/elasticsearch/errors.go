package elasticsearch

import (
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/wrap"
)

const (
	elasticIndexNotFoundException      = "index_not_found_exception"
	elasticIndexAlreadyExistsException = "resource_already_exists_exception"
)

func wrapElasticError(wrapped error, message string) error {
	return wrap.Error(formatElasticError(wrapped), message)
}

func wrapElasticErrorf(wrapped error, format string, args ...any) error {
	return wrap.Errorf(formatElasticError(wrapped), format, args...)
}

func isElasticErrorType(err error, errorType string) bool {
	var elasticErr *types.ElasticsearchError
	return errors.As(err, &elasticErr) && elasticErr.ErrorCause.Type == errorType
}

func formatElasticError(err error) error {
	var elasticErr *types.ElasticsearchError
	if !errors.As(err, &elasticErr) {
		return err
	}

	errMessage := formatErrorCause(elasticErr.ErrorCause)
	errMessage = fmt.Sprintf("%s (status %d)", errMessage, elasticErr.Status)

	rootCause := make([]error, len(elasticErr.ErrorCause.RootCause))
	for i, cause := range elasticErr.ErrorCause.RootCause {
		rootCause[i] = errors.New(formatErrorCause(cause))
	}

	if len(rootCause) == 0 {
		return errors.New(errMessage)
	} else {
		return wrap.Errors(errMessage, rootCause...)
	}
}

func formatErrorCause(cause types.ErrorCause) string {
	if cause.Reason == nil {
		return cause.Type
	}
	return fmt.Sprintf("%s (%s)", *cause.Reason, cause.Type)
}
