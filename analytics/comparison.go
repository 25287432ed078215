package analytics

import (
	"context"

	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

type CompareOptions struct {
	// Columns to index each result table by before concatenating, so rows are aligned on them.
	Index []string `json:"index,omitempty"`
	// Flattens the two-level column labels into "key: column" names.
	CollapseLabels bool `json:"collapseLabels,omitempty"`
}

// CompareContexts runs the same query through each source, in order, and places the result tables
// side by side under each source's label. Sources with no results are left out. If none of the
// sources had results, hasRows is false.
func CompareContexts(
	ctx context.Context,
	sources []TableSource,
	overrides query.Descriptor,
	options CompareOptions,
) (comparison table.Table, hasRows bool, err error) {
	keys := make([]string, len(sources))
	for i, source := range sources {
		keys[i] = source.Label()
	}

	return compare(keys, options, func(i int) (report.Result, bool, error) {
		return sources[i].Get(ctx, overrides, GetOptions{Index: options.Index})
	})
}

// CompareQueries runs each named query through the same source, in order, and places the result
// tables side by side under each query's name.
func CompareQueries(
	ctx context.Context,
	source TableSource,
	queries []query.Named,
	options CompareOptions,
) (comparison table.Table, hasRows bool, err error) {
	keys := make([]string, len(queries))
	for i, named := range queries {
		keys[i] = named.Name
	}

	return compare(keys, options, func(i int) (report.Result, bool, error) {
		return source.Get(ctx, queries[i].Query, GetOptions{Index: options.Index})
	})
}

func compare(
	keys []string,
	options CompareOptions,
	get func(i int) (report.Result, bool, error),
) (table.Table, bool, error) {
	resultKeys := make([]string, 0, len(keys))
	tables := make([]table.Table, 0, len(keys))

	for i, key := range keys {
		result, hasRows, err := get(i)
		if err != nil {
			return table.Table{}, false, wrap.Errorf(err, "query for '%s' failed", key)
		}
		if !hasRows {
			log.Warnf("No results for '%s', leaving it out of comparison", key)
			continue
		}

		resultKeys = append(resultKeys, key)
		tables = append(tables, result.Table)
	}

	if len(tables) == 0 {
		return table.Table{}, false, nil
	}

	comparison, err := table.Concat(resultKeys, tables)
	if err != nil {
		return table.Table{}, false, wrap.Error(err, "failed to combine result tables")
	}

	if options.CollapseLabels {
		comparison = comparison.CollapseLabels()
	}

	return comparison, true, nil
}
