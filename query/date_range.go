package query

import (
	"errors"
	"fmt"
)

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateRangeFromPair decomposes a two-element [start, end] range.
func DateRangeFromPair(pair []string) (DateRange, error) {
	if len(pair) != 2 {
		return DateRange{}, fmt.Errorf(
			"date range must have exactly 2 elements (start and end), got %d", len(pair),
		)
	}
	return DateRange{Start: pair[0], End: pair[1]}, nil
}

func (dateRange DateRange) IsZero() bool {
	return dateRange.Start == "" && dateRange.End == ""
}

func (dateRange DateRange) Validate() error {
	switch {
	case dateRange.Start == "" && dateRange.End == "":
		return errors.New("date range or start/end dates must be specified")
	case dateRange.Start == "":
		return errors.New("end date was given without a start date")
	case dateRange.End == "":
		return errors.New("start date was given without an end date")
	}
	return nil
}

func (dateRange DateRange) String() string {
	return fmt.Sprintf("%s to %s", dateRange.Start, dateRange.End)
}

// Apply sets the descriptor's start and end dates to the range.
func (dateRange DateRange) Apply(descriptor Descriptor) Descriptor {
	descriptor.StartDate = dateRange.Start
	descriptor.EndDate = dateRange.End
	return descriptor
}
