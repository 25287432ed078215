package ga

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/analytics/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/query"
	"hermannm.dev/gaframes/report"
	"hermannm.dev/wrap"
)

// Service executes query descriptors against the Analytics Core Reporting API (v3).
type Service struct {
	analytics *analytics.Service
}

// NewService creates a reporting API client that sends requests through httpClient, which should
// be authorized (see NewAuthenticatedClient). Additional client options, such as a custom endpoint,
// may be given.
func NewService(
	ctx context.Context,
	httpClient *http.Client,
	options ...option.ClientOption,
) (*Service, error) {
	options = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, options...)

	analyticsService, err := analytics.NewService(ctx, options...)
	if err != nil {
		return nil, wrap.Error(err, "failed to create analytics reporting client")
	}

	return &Service{analytics: analyticsService}, nil
}

// Execute runs the query once, without retries.
func (service *Service) Execute(
	ctx context.Context,
	descriptor query.Descriptor,
) (report.Response, error) {
	call := service.analytics.Data.Ga.Get(
		descriptor.TargetID,
		descriptor.StartDate,
		descriptor.EndDate,
		strings.Join(descriptor.Metrics, ","),
	)

	if len(descriptor.Dimensions) != 0 {
		call = call.Dimensions(strings.Join(descriptor.Dimensions, ","))
	}
	if descriptor.Filters != "" {
		call = call.Filters(descriptor.Filters)
	}
	if len(descriptor.Sort) != 0 {
		call = call.Sort(strings.Join(descriptor.Sort, ","))
	}
	if descriptor.SamplingLevel.IsValid() {
		call = call.SamplingLevel(descriptor.SamplingLevel.String())
	}
	if descriptor.Segment != "" {
		call = call.Segment(descriptor.Segment)
	}
	if descriptor.MaxResults != 0 {
		call = call.MaxResults(int64(descriptor.MaxResults))
	}

	data, err := call.Context(ctx).Do()
	if err != nil {
		return report.Response{}, formatAPIError(err)
	}

	log.Debug(
		"received reporting API response",
		slog.String("queryId", data.Id),
		slog.Int64("totalResults", data.TotalResults),
		slog.Int("rows", len(data.Rows)),
	)

	return ResponseFromData(data), nil
}

// ResponseFromData converts the API client's response type to the transport-independent one.
func ResponseFromData(data *analytics.GaData) report.Response {
	response := report.Response{
		ID:                  data.Id,
		ColumnHeaders:       make([]report.ColumnHeader, 0, len(data.ColumnHeaders)),
		ContainsSampledData: data.ContainsSampledData,
		TotalResults:        data.TotalResults,
		ItemsPerPage:        data.ItemsPerPage,
	}

	for _, header := range data.ColumnHeaders {
		if header == nil {
			continue
		}
		response.ColumnHeaders = append(response.ColumnHeaders, report.ColumnHeader{
			Name:       header.Name,
			ColumnType: header.ColumnType,
			DataType:   header.DataType,
		})
	}

	if len(data.Rows) != 0 {
		response.Rows = make([][]any, len(data.Rows))
		for i, row := range data.Rows {
			response.Rows[i] = make([]any, len(row))
			for j, value := range row {
				response.Rows[i][j] = value
			}
		}
	}

	return response
}

func formatAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return wrap.Errorf(err, "reporting API returned status %d: %s", apiErr.Code, apiErr.Message)
		}
		return wrap.Errorf(err, "reporting API returned status %d", apiErr.Code)
	}

	return wrap.Error(err, "reporting API request failed")
}
