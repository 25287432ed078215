package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/bulk"
	elastictypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/google/uuid"
	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

// Implements export.Sink for Elasticsearch, with one index per exported table.
type ElasticsearchSink struct {
	client *elasticsearch.TypedClient
}

func NewElasticsearchSink(config config.Elasticsearch) (ElasticsearchSink, error) {
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:         []string{config.Address},
		EnableDebugLogger: config.Debug,
	})
	if err != nil {
		return ElasticsearchSink{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	return ElasticsearchSink{client: client}, nil
}

func (elastic ElasticsearchSink) ExportTable(
	ctx context.Context,
	index string,
	data table.Table,
) error {
	if err := ValidateIndexName(index); err != nil {
		return err
	}

	columns, err := export.Columns(data)
	if err != nil {
		return wrap.Error(err, "failed to prepare table for export")
	}

	if err := elastic.createIndex(ctx, index, columns); err != nil {
		return err
	}

	rowCount := export.RowCount(columns)
	for batchStart := 0; batchStart < rowCount; batchStart += BulkInsertSize {
		batchEnd := min(batchStart+BulkInsertSize, rowCount)
		if err := elastic.insertBatch(ctx, index, columns, batchStart, batchEnd); err != nil {
			return wrap.Errorf(err, "failed to insert rows %d-%d", batchStart, batchEnd-1)
		}
	}

	log.Info(
		"exported table to Elasticsearch",
		slog.String("index", index),
		slog.Int("rows", rowCount),
	)
	return nil
}

func (elastic ElasticsearchSink) createIndex(
	ctx context.Context,
	index string,
	columns []export.Column,
) error {
	mappings, err := ColumnsToMappings(columns)
	if err != nil {
		return wrap.Error(err, "failed to translate table columns to Elasticsearch mappings")
	}

	if _, err = elastic.client.Indices.Create(index).Mappings(mappings).Do(ctx); err != nil {
		if isElasticErrorType(err, elasticIndexAlreadyExistsException) {
			log.Debugf("Elasticsearch index '%s' already exists, reusing it", index)
			return nil
		}

		return wrapElasticErrorf(err, "Elasticsearch index creation request failed for '%s'", index)
	}

	return nil
}

const BulkInsertSize = 1000

func (elastic ElasticsearchSink) insertBatch(
	ctx context.Context,
	index string,
	columns []export.Column,
	start int,
	end int,
) error {
	bulkRequest := elastic.client.Bulk()

	for row := start; row < end; row++ {
		id, err := uuid.NewUUID()
		if err != nil {
			return wrap.Errorf(err, "failed to generate unique ID for row %d", row)
		}
		idString := id.String()

		operation := elastictypes.CreateOperation{
			Id_:    &idString,
			Index_: &index,
		}

		rowJSON, err := json.Marshal(RowDocument(columns, row))
		if err != nil {
			return wrap.Errorf(
				err,
				"failed to encode row %d to JSON for sending to Elasticsearch",
				row,
			)
		}

		if err := bulkRequest.CreateOp(operation, rowJSON); err != nil {
			return wrap.Errorf(err, "failed to add create operation for row %d to bulk insert", row)
		}
	}

	response, err := bulkRequest.Do(ctx)
	if err != nil {
		return wrapElasticError(err, "bulk insert request failed")
	}

	if err := bulkItemErrors(response); err != nil {
		return err
	}
	return nil
}

func bulkItemErrors(response *bulk.Response) error {
	if !response.Errors {
		return nil
	}

	var errs []error
	for _, item := range response.Items {
		for _, result := range item {
			if result.Error != nil {
				errs = append(errs, errors.New(formatErrorCause(*result.Error)))
			}
		}
	}

	return wrap.Errors("bulk insert failed for some rows", errs...)
}

func (elastic ElasticsearchSink) DropTable(
	ctx context.Context,
	index string,
) (alreadyDropped bool, err error) {
	if err := ValidateIndexName(index); err != nil {
		return false, err
	}

	if _, err := elastic.client.Indices.Delete(index).Do(ctx); err != nil {
		if isElasticErrorType(err, elasticIndexNotFoundException) {
			return true, nil
		}

		return false, wrapElasticError(err, "delete index request failed")
	}

	return false, nil
}

var _ export.Sink = ElasticsearchSink{}
