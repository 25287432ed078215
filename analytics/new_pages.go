package analytics

import (
	"context"
	"fmt"
	"slices"

	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
	"hermannm.dev/wrap"
)

const DefaultNewPagesKey = "pagePath"

type NewPagesOptions struct {
	// Name of the dimension identifying a page, without namespace prefix. Defaults to
	// DefaultNewPagesKey.
	KeyColumn string `json:"keyColumn,omitempty"`
}

// FindNewPages returns the rows of the current date range's result whose key was not present in
// the baseline date range's result. The key dimension is added to the query if missing.
func FindNewPages(
	ctx context.Context,
	executor Executor,
	targetID string,
	baseline query.DateRange,
	current query.DateRange,
	overrides query.Descriptor,
	options NewPagesOptions,
) (newPages report.Result, hasRows bool, err error) {
	keyColumn := options.KeyColumn
	if keyColumn == "" {
		keyColumn = DefaultNewPagesKey
	}

	pagesQuery := overrides.Clone()
	keyDimension := query.NamespacePrefix + keyColumn
	if !slices.Contains(pagesQuery.Dimensions, keyDimension) {
		pagesQuery.Dimensions = append(pagesQuery.Dimensions, keyDimension)
	}

	baselineContext, err := NewContext(executor, ContextConfig{
		TargetID:  targetID,
		StartDate: baseline.Start,
		EndDate:   baseline.End,
		Label:     "baseline",
	})
	if err != nil {
		return report.Result{}, false, wrap.Error(err, "invalid baseline date range")
	}

	currentContext, err := NewContext(executor, ContextConfig{
		TargetID:  targetID,
		StartDate: current.Start,
		EndDate:   current.End,
		Label:     "current",
	})
	if err != nil {
		return report.Result{}, false, wrap.Error(err, "invalid current date range")
	}

	baselineResult, baselineHasRows, err := baselineContext.Get(ctx, pagesQuery, GetOptions{})
	if err != nil {
		return report.Result{}, false, wrap.Error(err, "baseline query failed")
	}

	baselineKeys := make(map[string]struct{})
	if baselineHasRows {
		column, ok := baselineResult.Table.Column(keyColumn)
		if !ok {
			return report.Result{}, false, fmt.Errorf("baseline result has no '%s' column", keyColumn)
		}
		for _, value := range column.Values {
			baselineKeys[fmt.Sprint(value)] = struct{}{}
		}
	}

	currentResult, currentHasRows, err := currentContext.Get(ctx, pagesQuery, GetOptions{})
	if err != nil {
		return report.Result{}, false, wrap.Error(err, "current query failed")
	}
	if !currentHasRows {
		return report.Result{}, false, nil
	}

	keys, ok := currentResult.Table.Column(keyColumn)
	if !ok {
		return report.Result{}, false, fmt.Errorf("current result has no '%s' column", keyColumn)
	}

	newPages = currentResult
	newPages.Table = currentResult.Table.FilterRows(func(row int) bool {
		_, inBaseline := baselineKeys[fmt.Sprint(keys.Values[row])]
		return !inBaseline
	})
	newPages.RowCount = newPages.Table.RowCount()

	return newPages, true, nil
}
