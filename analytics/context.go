package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

// Executor runs a merged query descriptor against the reporting API.
type Executor interface {
	Execute(ctx context.Context, descriptor query.Descriptor) (report.Response, error)
}

// TableSource is anything a normalized table can be fetched from. Implemented by *Context.
type TableSource interface {
	Label() string
	Get(ctx context.Context, overrides query.Descriptor, options GetOptions) (
		result report.Result,
		hasRows bool,
		err error,
	)
}

type ContextConfig struct {
	TargetID string `json:"ids"`

	// Either StartDate and EndDate, or DateRange, must be set. DateRange takes precedence.
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	// Two-element [start, end] range.
	DateRange []string `json:"dateRange,omitempty"`

	Label string `json:"label,omitempty"`
	// Applied to every query made through the context, unless overridden per call.
	Defaults query.Descriptor `json:"defaults"`
}

// A Context holds the identity of a data source and a date range, as a shorthand for running
// multiple related queries. It is immutable after construction; every query merges a fresh
// descriptor from the system defaults, the context's defaults and the call's overrides.
type Context struct {
	executor  Executor
	targetID  string
	dateRange query.DateRange
	label     string
	defaults  query.Descriptor
}

// ConfigError is returned when a context is constructed without a complete identity.
type ConfigError struct {
	err error
}

func (err ConfigError) Error() string {
	return "invalid query context: " + err.err.Error()
}

func (err ConfigError) Unwrap() error {
	return err.err
}

func NewContext(executor Executor, config ContextConfig) (*Context, error) {
	if executor == nil {
		return nil, ConfigError{errors.New("no query executor given")}
	}
	if config.TargetID == "" {
		return nil, ConfigError{errors.New("target ID must be specified")}
	}

	dateRange := query.DateRange{Start: config.StartDate, End: config.EndDate}
	if config.DateRange != nil {
		var err error
		if dateRange, err = query.DateRangeFromPair(config.DateRange); err != nil {
			return nil, ConfigError{err}
		}
	}
	if err := dateRange.Validate(); err != nil {
		return nil, ConfigError{err}
	}

	defaults := config.Defaults.Clone()
	defaults.TargetID = config.TargetID
	defaults = dateRange.Apply(defaults)

	return &Context{
		executor:  executor,
		targetID:  config.TargetID,
		dateRange: dateRange,
		label:     config.Label,
		defaults:  defaults,
	}, nil
}

func (queryContext *Context) Label() string {
	return queryContext.label
}

func (queryContext *Context) TargetID() string {
	return queryContext.targetID
}

func (queryContext *Context) DateRange() query.DateRange {
	return queryContext.dateRange
}

// Description is the context's label followed by its date range, used as the table heading when
// GetOptions.ShowHeading is set.
func (queryContext *Context) Description() string {
	label := queryContext.label
	if label == "" {
		label = queryContext.targetID
	}
	return fmt.Sprintf("%s (%s)", label, queryContext.dateRange)
}

// Descriptor returns the merged descriptor that a query with the given overrides would send.
func (queryContext *Context) Descriptor(overrides query.Descriptor) (query.Descriptor, error) {
	descriptor := query.Merge(query.Defaults(), queryContext.defaults, overrides)
	descriptor = query.ApplySortHeuristic(descriptor)

	if err := descriptor.Validate(); err != nil {
		return query.Descriptor{}, err
	}
	return descriptor, nil
}

// GetRaw runs the query and returns the unprocessed response.
func (queryContext *Context) GetRaw(
	ctx context.Context,
	overrides query.Descriptor,
) (report.Response, error) {
	descriptor, err := queryContext.Descriptor(overrides)
	if err != nil {
		return report.Response{}, err
	}
	return queryContext.execute(ctx, descriptor)
}

type GetOptions struct {
	// Columns to use as the table index.
	Index []string `json:"index,omitempty"`
	// Nests the table's columns under the context's Description.
	ShowHeading bool `json:"showHeading,omitempty"`
	// Nests the table's columns under the given heading. Takes precedence over ShowHeading.
	Heading string `json:"heading,omitempty"`
}

// Get runs the query and normalizes its response into a table. If the query had no results,
// hasRows is false.
func (queryContext *Context) Get(
	ctx context.Context,
	overrides query.Descriptor,
	options GetOptions,
) (result report.Result, hasRows bool, err error) {
	descriptor, err := queryContext.Descriptor(overrides)
	if err != nil {
		return report.Result{}, false, err
	}

	response, err := queryContext.execute(ctx, descriptor)
	if err != nil {
		return report.Result{}, false, err
	}

	normalizeOptions := report.Options{Index: options.Index, Heading: options.Heading}
	if normalizeOptions.Heading == "" && options.ShowHeading {
		normalizeOptions.Heading = queryContext.Description()
	}

	return queryContext.normalize(response, normalizeOptions)
}

// GetOne runs the query and returns its single value. The sort heuristic is not applied, since
// sorting a single value is meaningless. If the query had no results, hasResult is false; if it
// had more than one row or column, a table.NotScalarError is returned.
func (queryContext *Context) GetOne(
	ctx context.Context,
	overrides query.Descriptor,
) (value any, hasResult bool, err error) {
	descriptor, err := queryContext.Descriptor(overrides)
	if err != nil {
		return nil, false, err
	}
	descriptor.Sort = nil

	response, err := queryContext.execute(ctx, descriptor)
	if err != nil {
		return nil, false, err
	}

	result, hasRows, err := queryContext.normalize(response, report.Options{})
	if err != nil {
		return nil, false, err
	}
	if !hasRows {
		log.Info("query returned no results", slog.String("context", queryContext.Description()))
		return nil, false, nil
	}

	value, err = result.Table.Scalar()
	if err != nil {
		return nil, false, err
	}
	return table.InferScalar(value), true, nil
}

func (queryContext *Context) execute(
	ctx context.Context,
	descriptor query.Descriptor,
) (report.Response, error) {
	log.Debug(
		"running query",
		slog.String("context", queryContext.Description()),
		slog.Any("metrics", descriptor.Metrics),
		slog.Any("dimensions", descriptor.Dimensions),
	)

	response, err := queryContext.executor.Execute(ctx, descriptor)
	if err != nil {
		return report.Response{}, wrap.Errorf(
			err, "query failed for '%s'", queryContext.Description(),
		)
	}
	return response, nil
}

func (queryContext *Context) normalize(
	response report.Response,
	options report.Options,
) (report.Result, bool, error) {
	result, hasRows, err := report.Normalize(response, options)
	if err != nil {
		return report.Result{}, false, wrap.Errorf(
			err, "failed to normalize response for '%s'", queryContext.Description(),
		)
	}

	if result.ContainsSampledData {
		log.Warnf("Result for '%s' contains sampled data", queryContext.Description())
	}

	return result, hasRows, nil
}

// Get runs a single query through a context constructed from the descriptor's own target ID and
// dates.
func Get(
	ctx context.Context,
	executor Executor,
	descriptor query.Descriptor,
	options GetOptions,
) (result report.Result, hasRows bool, err error) {
	queryContext, err := contextFromDescriptor(executor, descriptor)
	if err != nil {
		return report.Result{}, false, err
	}
	return queryContext.Get(ctx, descriptor, options)
}

// GetOne is the single-value counterpart of Get.
func GetOne(
	ctx context.Context,
	executor Executor,
	descriptor query.Descriptor,
) (value any, hasResult bool, err error) {
	queryContext, err := contextFromDescriptor(executor, descriptor)
	if err != nil {
		return nil, false, err
	}
	return queryContext.GetOne(ctx, descriptor)
}

func contextFromDescriptor(executor Executor, descriptor query.Descriptor) (*Context, error) {
	return NewContext(executor, ContextConfig{
		TargetID:  descriptor.TargetID,
		StartDate: descriptor.StartDate,
		EndDate:   descriptor.EndDate,
	})
}
