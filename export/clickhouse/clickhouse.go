package clickhouse

import (
	"context"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"github.com/google/uuid"
	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

// Implements export.Sink for ClickHouse.
type ClickHouseSink struct {
	conn driver.Conn
}

func NewClickHouseSink(ctx context.Context, config config.ClickHouse) (ClickHouseSink, error) {
	// Options docs: https://clickhouse.com/docs/en/integrations/go#connection-settings
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Address},
		Auth: clickhouse.Auth{
			Database: config.DatabaseName,
			Username: config.Username,
			Password: config.Password,
		},
		Debug: config.Debug,
		Debugf: func(format string, v ...any) {
			log.Debugf(format, v...)
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return ClickHouseSink{}, wrap.Error(err, "failed to connect to ClickHouse")
	}

	if err := conn.Ping(ctx); err != nil {
		return ClickHouseSink{}, wrap.Error(err, "failed to ping ClickHouse connection")
	}

	return ClickHouseSink{conn: conn}, nil
}

func (clickhouse ClickHouseSink) ExportTable(
	ctx context.Context,
	name string,
	data table.Table,
) error {
	columns, err := export.Columns(data)
	if err != nil {
		return wrap.Error(err, "failed to prepare table for export")
	}

	createQuery, err := BuildCreateTableQuery(name, columns)
	if err != nil {
		return err
	}
	if err := clickhouse.conn.Exec(ctx, createQuery); err != nil {
		return wrap.Errorf(err, "create table query failed for table '%s'", name)
	}

	insertQuery, err := BuildInsertQuery(name, columns)
	if err != nil {
		return err
	}

	rowCount := export.RowCount(columns)
	for batchStart := 0; batchStart < rowCount; batchStart += BatchInsertSize {
		batchEnd := min(batchStart+BatchInsertSize, rowCount)
		if err := clickhouse.insertBatch(ctx, insertQuery, columns, batchStart, batchEnd); err != nil {
			return wrap.Errorf(err, "failed to insert rows %d-%d", batchStart, batchEnd-1)
		}
	}

	log.Info(
		"exported table to ClickHouse",
		slog.String("table", name),
		slog.Int("rows", rowCount),
	)
	return nil
}

// ClickHouse recommends keeping batch inserts between 10,000 and 100,000 rows:
// https://clickhouse.com/docs/en/cloud/bestpractices/bulk-inserts
const BatchInsertSize = 10000

func (clickhouse ClickHouseSink) insertBatch(
	ctx context.Context,
	insertQuery string,
	columns []export.Column,
	start int,
	end int,
) error {
	batch, err := clickhouse.conn.PrepareBatch(ctx, insertQuery)
	if err != nil {
		return wrap.Error(err, "failed to prepare batch insert")
	}

	for row := start; row < end; row++ {
		id, err := uuid.NewUUID()
		if err != nil {
			return wrap.Errorf(err, "failed to generate unique ID for row %d", row)
		}

		values := append([]any{id.String()}, export.Row(columns, row)...)
		if err := batch.Append(values...); err != nil {
			return wrap.Errorf(err, "failed to add row %d to batch insert", row)
		}
	}

	if err := batch.Send(); err != nil {
		return wrap.Error(err, "failed to send batch insert")
	}
	return nil
}

func (clickhouse ClickHouseSink) DropTable(
	ctx context.Context,
	name string,
) (alreadyDropped bool, err error) {
	if err := ValidateIdentifier(name); err != nil {
		return false, wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("DROP TABLE ")
	query.WriteIdentifier(name)

	// See https://github.com/ClickHouse/ClickHouse/blob/bd387f6d2c30f67f2822244c0648f2169adab4d3/src/Common/ErrorCodes.cpp#L66
	const clickhouseUnknownTableErrorCode = 60

	if err := clickhouse.conn.Exec(ctx, query.String()); err != nil {
		clickHouseErr, isClickHouseErr := err.(*proto.Exception)
		if isClickHouseErr && clickHouseErr.Code == clickhouseUnknownTableErrorCode {
			return true, nil
		}

		return false, wrap.Error(err, "ClickHouse table drop query failed")
	}

	return false, nil
}

var _ export.Sink = ClickHouseSink{}
