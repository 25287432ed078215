package query

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

// Param is one of the recognized query parameter names.
type Param uint8

const (
	ParamTargetID Param = iota + 1
	ParamStartDate
	ParamEndDate
	ParamDateRange
	ParamMetrics
	ParamDimensions
	ParamFilters
	ParamSort
	ParamSamplingLevel
	ParamSegment
	ParamMaxResults
)

var paramNames = enumnames.NewMap(map[Param]string{
	ParamTargetID:      "ids",
	ParamStartDate:     "start_date",
	ParamEndDate:       "end_date",
	ParamDateRange:     "date_range",
	ParamMetrics:       "metrics",
	ParamDimensions:    "dimensions",
	ParamFilters:       "filters",
	ParamSort:          "sort",
	ParamSamplingLevel: "sampling_level",
	ParamSegment:       "segment",
	ParamMaxResults:    "max_results",
})

// Spellings used by the reporting API itself.
var paramAliases = map[string]Param{
	"startDate":     ParamStartDate,
	"endDate":       ParamEndDate,
	"dateRange":     ParamDateRange,
	"samplingLevel": ParamSamplingLevel,
	"maxResults":    ParamMaxResults,
}

func ParseParam(name string) (Param, bool) {
	if param, ok := paramNames.EnumValueFromName(name); ok {
		return param, true
	}
	param, ok := paramAliases[name]
	return param, ok
}

func (param Param) String() string {
	return paramNames.GetNameOrFallback(param, "INVALID_PARAM")
}

// UnrecognizedParamError is returned by FromParams for parameter names outside the recognized
// vocabulary, instead of passing them on to the reporting API.
type UnrecognizedParamError struct {
	Name string
}

func (err UnrecognizedParamError) Error() string {
	return fmt.Sprintf("unrecognized query parameter '%s'", err.Name)
}

// FromParams builds a descriptor from loosely typed parameters, such as those decoded from JSON or
// YAML. Metrics, dimensions and sort accept either a comma-separated string or a list.
func FromParams(params map[string]any) (Descriptor, error) {
	var descriptor Descriptor
	var dateRange DateRange
	var errs []error

	// Sorted for a deterministic error order.
	for _, name := range slices.Sorted(maps.Keys(params)) {
		value := params[name]

		param, ok := ParseParam(name)
		if !ok {
			errs = append(errs, UnrecognizedParamError{Name: name})
			continue
		}

		if err := setParam(&descriptor, &dateRange, param, value); err != nil {
			errs = append(errs, wrap.Errorf(err, "invalid value for '%s'", name))
		}
	}

	if !dateRange.IsZero() {
		if descriptor.StartDate != "" || descriptor.EndDate != "" {
			errs = append(errs, errors.New("date range cannot be combined with start/end dates"))
		} else {
			descriptor = dateRange.Apply(descriptor)
		}
	}

	if (descriptor.StartDate == "") != (descriptor.EndDate == "") {
		dates := DateRange{Start: descriptor.StartDate, End: descriptor.EndDate}
		errs = append(errs, dates.Validate())
	}

	if len(errs) != 0 {
		return Descriptor{}, wrap.Errors("invalid query parameters", errs...)
	}
	return descriptor, nil
}

func setParam(descriptor *Descriptor, dateRange *DateRange, param Param, value any) (err error) {
	switch param {
	case ParamTargetID:
		descriptor.TargetID, err = stringParam(value)
	case ParamStartDate:
		descriptor.StartDate, err = stringParam(value)
	case ParamEndDate:
		descriptor.EndDate, err = stringParam(value)
	case ParamDateRange:
		var pair []string
		if pair, err = listParam(value); err == nil {
			*dateRange, err = DateRangeFromPair(pair)
		}
	case ParamMetrics:
		descriptor.Metrics, err = listParam(value)
	case ParamDimensions:
		descriptor.Dimensions, err = listParam(value)
	case ParamFilters:
		descriptor.Filters, err = stringParam(value)
	case ParamSort:
		descriptor.Sort, err = listParam(value)
	case ParamSamplingLevel:
		var name string
		if name, err = stringParam(value); err == nil {
			level, ok := ParseSamplingLevel(strings.ToUpper(name))
			if !ok {
				return fmt.Errorf(
					"unrecognized sampling level '%s' (must be one of: %s, %s, %s)",
					name, SamplingDefault, SamplingFaster, SamplingHigherPrecision,
				)
			}
			descriptor.SamplingLevel = level
		}
	case ParamSegment:
		descriptor.Segment, err = stringParam(value)
	case ParamMaxResults:
		descriptor.MaxResults, err = intParam(value)
	default:
		err = fmt.Errorf("unhandled parameter %v", param)
	}
	return err
}

func stringParam(value any) (string, error) {
	switch value := value.(type) {
	case string:
		return value, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func listParam(value any) ([]string, error) {
	switch value := value.(type) {
	case string:
		return splitList(value), nil
	case []string:
		return slices.Clone(value), nil
	case []any:
		list := make([]string, 0, len(value))
		for _, element := range value {
			str, ok := element.(string)
			if !ok {
				return nil, fmt.Errorf("expected list of strings, got element of type %T", element)
			}
			list = append(list, strings.TrimSpace(str))
		}
		return list, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected string or list of strings, got %T", value)
	}
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	var list []string
	for _, element := range strings.Split(value, ",") {
		if element = strings.TrimSpace(element); element != "" {
			list = append(list, element)
		}
	}
	return list
}

func intParam(value any) (int, error) {
	switch value := value.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("expected integer, got %v", value)
		}
		return int(value), nil
	case string:
		return strconv.Atoi(value)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}
