package analytics_test

import (
	"context"
	"strings"

	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
)

// fakeExecutor records every executed descriptor, and answers with respond.
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

func (executor *fakeExecutor) last() query.Descriptor {
	return executor.executed[len(executor.executed)-1]
}

func respondWith(response report.Response) func(query.Descriptor) (report.Response, error) {
	return func(query.Descriptor) (report.Response, error) {
		return response, nil
	}
}

// newResponse builds a response with one header per name, with the namespace prefix added.
func newResponse(names []string, rows ...[]any) report.Response {
	headers := make([]report.ColumnHeader, len(names))
	for i, name := range names {
		headers[i] = report.ColumnHeader{Name: query.NamespacePrefix + name}
	}
	return report.Response{
		ID:            "query-" + strings.Join(names, "-"),
		ColumnHeaders: headers,
		Rows:          rows,
	}
}
