package analytics

import (
	"context"

	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

type NamedSegment struct {
	Name string `json:"name"`
	// Segment expression or ID, e.g. "gaid::-5" or "sessions::condition::ga:country==Norway".
	Expression string `json:"expression"`
}

// Index column names of tables returned by SegmentPivot.
const (
	PivotStartDateColumn = "startDate"
	PivotEndDateColumn   = "endDate"
)

// SegmentPivot builds a table with one row per date range (indexed by start and end date) and one
// column per segment, where each cell is the single value of the query for that segment and date
// range. Cells for queries without results are nil. Queries run one at a time, in row order.
func SegmentPivot(
	ctx context.Context,
	executor Executor,
	targetID string,
	segments []NamedSegment,
	dateRanges []query.DateRange,
	overrides query.Descriptor,
) (table.Table, error) {
	startDates := make([]any, len(dateRanges))
	endDates := make([]any, len(dateRanges))
	cells := make([][]any, len(segments))
	for i := range cells {
		cells[i] = make([]any, len(dateRanges))
	}

	for row, dateRange := range dateRanges {
		queryContext, err := NewContext(executor, ContextConfig{
			TargetID:  targetID,
			StartDate: dateRange.Start,
			EndDate:   dateRange.End,
		})
		if err != nil {
			return table.Table{}, wrap.Errorf(err, "invalid date range %d", row)
		}

		startDates[row] = dateRange.Start
		endDates[row] = dateRange.End

		for column, segment := range segments {
			segmentQuery := overrides.Clone()
			segmentQuery.Segment = segment.Expression

			value, hasResult, err := queryContext.GetOne(ctx, segmentQuery)
			if err != nil {
				return table.Table{}, wrap.Errorf(
					err, "query for segment '%s' in %s failed", segment.Name, dateRange,
				)
			}
			if hasResult {
				cells[column][row] = value
			}
		}
	}

	pivot := table.Table{
		Index: []table.Column{
			{Label: table.Label{Name: PivotStartDateColumn}, DataType: table.DataTypeText, Values: startDates},
			{Label: table.Label{Name: PivotEndDateColumn}, DataType: table.DataTypeText, Values: endDates},
		},
		Columns: make([]table.Column, len(segments)),
	}
	for i, segment := range segments {
		pivot.Columns[i] = table.ColumnFromScalars(segment.Name, cells[i])
	}

	if err := pivot.Validate(); err != nil {
		return table.Table{}, wrap.Error(err, "failed to build segment pivot table")
	}
	return pivot, nil
}
