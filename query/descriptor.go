package query

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"hermannm.dev/wrap"
)

// NamespacePrefix is prepended to every metric and dimension name by the reporting API.
const NamespacePrefix = "ga:"

const (
	DefaultMetric     = NamespacePrefix + "pageviews"
	DefaultMaxResults = 1000
)

// A Descriptor holds the parameters of a single reporting query. A zero-valued field is unset, and
// is filled in from lower-precedence layers when merged (see Merge).
type Descriptor struct {
	TargetID      string        `json:"ids,omitempty"`
	StartDate     string        `json:"startDate,omitempty"`
	EndDate       string        `json:"endDate,omitempty"`
	Metrics       []string      `json:"metrics,omitempty"`
	Dimensions    []string      `json:"dimensions,omitempty"`
	Filters       string        `json:"filters,omitempty"`
	Sort          []string      `json:"sort,omitempty"`
	SamplingLevel SamplingLevel `json:"samplingLevel,omitempty"`
	Segment       string        `json:"segment,omitempty"`
	MaxResults    int           `json:"maxResults,omitempty"`
}

// Defaults returns the system-wide defaults: total pageviews, sorted descending, at high precision,
// capped at 1000 rows.
func Defaults() Descriptor {
	return Descriptor{
		Metrics:       []string{DefaultMetric},
		Sort:          []string{Descending(DefaultMetric)},
		SamplingLevel: SamplingHigherPrecision,
		MaxResults:    DefaultMaxResults,
	}
}

// Merge layers the given descriptors in increasing order of precedence: every field set in
// contextDefaults overrides defaults, and every field set in overrides overrides both. None of the
// given descriptors are modified.
func Merge(defaults Descriptor, contextDefaults Descriptor, overrides Descriptor) Descriptor {
	return overlay(overlay(defaults.Clone(), contextDefaults), overrides)
}

func overlay(base Descriptor, top Descriptor) Descriptor {
	if top.TargetID != "" {
		base.TargetID = top.TargetID
	}
	if top.StartDate != "" {
		base.StartDate = top.StartDate
	}
	if top.EndDate != "" {
		base.EndDate = top.EndDate
	}
	if len(top.Metrics) != 0 {
		base.Metrics = slices.Clone(top.Metrics)
	}
	if len(top.Dimensions) != 0 {
		base.Dimensions = slices.Clone(top.Dimensions)
	}
	if top.Filters != "" {
		base.Filters = top.Filters
	}
	if len(top.Sort) != 0 {
		base.Sort = slices.Clone(top.Sort)
	}
	if top.SamplingLevel != 0 {
		base.SamplingLevel = top.SamplingLevel
	}
	if top.Segment != "" {
		base.Segment = top.Segment
	}
	if top.MaxResults != 0 {
		base.MaxResults = top.MaxResults
	}
	return base
}

// ApplySortHeuristic sorts descending by the first requested metric, replacing any previous sort.
// The reporting API rejects sorting by a metric that is not requested, so a sort inherited from a
// lower layer would otherwise break queries that override the metrics.
//
// If no metrics are set, the sort is left as it is.
func ApplySortHeuristic(descriptor Descriptor) Descriptor {
	if len(descriptor.Metrics) == 0 {
		return descriptor
	}

	descriptor.Sort = []string{Descending(descriptor.Metrics[0])}
	return descriptor
}

// Descending returns the sort expression for ordering by the given field from highest to lowest.
func Descending(field string) string {
	return "-" + field
}

func (descriptor Descriptor) Clone() Descriptor {
	descriptor.Metrics = slices.Clone(descriptor.Metrics)
	descriptor.Dimensions = slices.Clone(descriptor.Dimensions)
	descriptor.Sort = slices.Clone(descriptor.Sort)
	return descriptor
}

// Matches the date formats accepted by the reporting API.
var datePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|today|yesterday|\d+daysAgo)$`)

// Validate checks that a merged descriptor has everything required to be executed.
func (descriptor Descriptor) Validate() error {
	var errs []error

	if descriptor.TargetID == "" {
		errs = append(errs, errors.New("missing target ID"))
	}

	for _, date := range []struct {
		name  string
		value string
	}{
		{"start date", descriptor.StartDate},
		{"end date", descriptor.EndDate},
	} {
		if date.value == "" {
			errs = append(errs, fmt.Errorf("missing %s", date.name))
		} else if !datePattern.MatchString(date.value) {
			errs = append(errs, fmt.Errorf("invalid %s '%s'", date.name, date.value))
		}
	}

	if len(descriptor.Metrics) == 0 {
		errs = append(errs, errors.New("at least one metric is required"))
	}

	if descriptor.SamplingLevel != 0 && !descriptor.SamplingLevel.IsValid() {
		errs = append(errs, fmt.Errorf("invalid sampling level %d", descriptor.SamplingLevel))
	}

	if descriptor.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("max results cannot be negative, got %d", descriptor.MaxResults))
	}

	if len(errs) != 0 {
		return InvalidQueryError{wrap.Errors("invalid query", errs...)}
	}
	return nil
}

// InvalidQueryError is returned by Validate, and lists every problem found with the descriptor.
type InvalidQueryError struct {
	err error
}

func (err InvalidQueryError) Error() string {
	return err.err.Error()
}

func (err InvalidQueryError) Unwrap() error {
	return err.err
}
