package report

import (
	"fmt"
	"log/slog"
	"strings"

	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

type Options struct {
	// Names of columns to move into the table index (after stripping the namespace prefix).
	Index []string
	// If set, all data columns are nested under this heading.
	Heading string
}

type Result struct {
	Table table.Table `json:"table"`

	QueryID string `json:"queryId"`
	// Whether the reporting API computed the result from down-sampled data, which makes it less
	// precise.
	ContainsSampledData bool  `json:"containsSampledData"`
	TotalResults        int64 `json:"totalResults"`
	RowCount            int   `json:"rowCount"`
	ColumnCount         int   `json:"columnCount"`
}

// ShapeError is returned when a row in the response does not have one value per column header.
// It means the reporting API broke its response contract.
type ShapeError struct {
	Row      int
	Expected int
	Actual   int
}

func (err ShapeError) Error() string {
	if err.Expected == 0 {
		return fmt.Sprintf(
			"response has rows, but no column headers (row %d has %d values)",
			err.Row, err.Actual,
		)
	}
	return fmt.Sprintf(
		"row %d has %d values, but response has %d column headers",
		err.Row, err.Actual, err.Expected,
	)
}

// Normalize converts a raw response into a typed table, with the namespace prefix stripped from
// column names. If the response has no rows, hasRows is false and no error is returned; callers
// must check it before using the result.
func Normalize(response Response, options Options) (result Result, hasRows bool, err error) {
	log.Debug(
		"normalizing query response",
		slog.String("queryId", response.ID),
		slog.Int("rows", len(response.Rows)),
		slog.Bool("containsSampledData", response.ContainsSampledData),
	)

	if len(response.Rows) == 0 {
		return Result{}, false, nil
	}

	names := make([]string, len(response.ColumnHeaders))
	for i, header := range response.ColumnHeaders {
		names[i] = StripPrefix(header.Name)
	}

	if len(names) == 0 {
		return Result{}, false, ShapeError{Row: 0, Expected: 0, Actual: len(response.Rows[0])}
	}
	for i, row := range response.Rows {
		if len(row) != len(names) {
			return Result{}, false, ShapeError{Row: i, Expected: len(names), Actual: len(row)}
		}
	}

	columns := make([]table.Column, len(names))
	for i, name := range names {
		values := make([]any, len(response.Rows))
		for j, row := range response.Rows {
			values[j] = row[i]
		}
		columns[i] = table.NewColumn(name, values)
	}

	normalized, err := table.New(columns...)
	if err != nil {
		return Result{}, false, wrap.Error(err, "failed to build table from response")
	}

	if len(options.Index) != 0 {
		normalized, err = normalized.SetIndex(options.Index...)
		if err != nil {
			return Result{}, false, err
		}
	}

	if options.Heading != "" {
		normalized = normalized.WithHeading(options.Heading)
	}

	return Result{
		Table:               normalized,
		QueryID:             response.ID,
		ContainsSampledData: response.ContainsSampledData,
		TotalResults:        response.TotalResults,
		RowCount:            normalized.RowCount(),
		ColumnCount:         normalized.ColumnCount(),
	}, true, nil
}

func StripPrefix(name string) string {
	return strings.TrimPrefix(name, query.NamespacePrefix)
}

// PrefixedHeaders re-derives the API's column header names from a normalized table, index columns
// first. Group labels from headings are not part of the header names.
func PrefixedHeaders(normalized table.Table) []string {
	headers := make([]string, 0, len(normalized.Index)+len(normalized.Columns))
	for _, column := range normalized.Index {
		headers = append(headers, query.NamespacePrefix+column.Label.Name)
	}
	for _, column := range normalized.Columns {
		headers = append(headers, query.NamespacePrefix+column.Label.Name)
	}
	return headers
}
