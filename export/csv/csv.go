// Package csv exports tables to CSV files in a local directory, one file per table.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/table"
	"hermannm.dev/wrap"
)

const FileExtension = ".csv"

// Lines read from an existing file when deducing its field delimiter.
const maxRowsToCheck = 20

// Implements export.Sink for CSV files.
type CSVSink struct {
	outputDir string
	delimiter rune
}

func NewCSVSink(config config.CSV) (CSVSink, error) {
	delimiter, err := parseDelimiter(config.Delimiter)
	if err != nil {
		return CSVSink{}, err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return CSVSink{}, wrap.Errorf(
			err,
			"failed to create CSV output directory '%s'",
			config.OutputDir,
		)
	}

	return CSVSink{outputDir: config.OutputDir, delimiter: delimiter}, nil
}

func parseDelimiter(delimiter string) (rune, error) {
	if utf8.RuneCountInString(delimiter) != 1 {
		return 0, fmt.Errorf("CSV delimiter must be a single character, got '%s'", delimiter)
	}

	char, _ := utf8.DecodeRuneInString(delimiter)
	if char == '"' || char == '\r' || char == '\n' || char == utf8.RuneError {
		return 0, fmt.Errorf("invalid CSV delimiter '%s'", delimiter)
	}

	return char, nil
}

// ValidateFileName checks that the table name can be used as a file name in the output directory.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("file name cannot be blank")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("file name '%s' must not be a path", name)
	}
	return nil
}

// ExportTable writes the table to <name>.csv, with a header row of column names. If the file
// already exists, rows are appended to it, provided its header matches the table's columns.
func (sink CSVSink) ExportTable(ctx context.Context, name string, data table.Table) error {
	if err := ValidateFileName(name); err != nil {
		return wrap.Error(err, "invalid CSV file name")
	}

	columns, err := export.Columns(data)
	if err != nil {
		return wrap.Error(err, "failed to prepare table for export")
	}

	path := sink.filePath(name)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return wrap.Errorf(err, "failed to open CSV file '%s'", path)
	}

	if err := sink.writeRows(ctx, file, columns); err != nil {
		file.Close()
		return wrap.Errorf(err, "failed to write to CSV file '%s'", path)
	}

	if err := file.Close(); err != nil {
		return wrap.Errorf(err, "failed to close CSV file '%s'", path)
	}

	log.Info(
		"exported table to CSV",
		slog.String("file", path),
		slog.Int("rows", export.RowCount(columns)),
	)
	return nil
}

func (sink CSVSink) writeRows(ctx context.Context, file *os.File, columns []export.Column) error {
	header := make([]string, len(columns))
	for i, column := range columns {
		header[i] = column.Name
	}

	info, err := file.Stat()
	if err != nil {
		return wrap.Error(err, "failed to get file info")
	}

	delimiter := sink.delimiter
	appending := info.Size() != 0
	if appending {
		if delimiter, err = sink.checkExistingHeader(file, header); err != nil {
			return err
		}
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return wrap.Error(err, "failed to seek to end of file")
		}
	}

	writer := csv.NewWriter(file)
	writer.Comma = delimiter

	if !appending {
		if err := writer.Write(header); err != nil {
			return wrap.Error(err, "failed to write header row")
		}
	}

	record := make([]string, len(columns))
	rowCount := export.RowCount(columns)
	for row := 0; row < rowCount; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i, value := range export.Row(columns, row) {
			record[i] = formatValue(value)
		}
		if err := writer.Write(record); err != nil {
			return wrap.Errorf(err, "failed to write row %d", row)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Returns the delimiter of the existing file.
func (sink CSVSink) checkExistingHeader(file *os.File, header []string) (rune, error) {
	delimiter, err := DeduceFieldDelimiter(file, maxRowsToCheck, sink.delimiter)
	if err != nil {
		return 0, wrap.Error(err, "failed to deduce field delimiter of existing file")
	}

	reader := csv.NewReader(file)
	reader.Comma = delimiter
	existingHeader, err := reader.Read()
	if err != nil {
		return 0, wrap.Error(err, "failed to read header row of existing file")
	}

	if !slices.Equal(existingHeader, header) {
		return 0, fmt.Errorf(
			"existing file has columns [%s], but exported table has [%s]",
			strings.Join(existingHeader, ", "),
			strings.Join(header, ", "),
		)
	}

	return delimiter, nil
}

func formatValue(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func (sink CSVSink) DropTable(ctx context.Context, name string) (alreadyDropped bool, err error) {
	if err := ValidateFileName(name); err != nil {
		return false, wrap.Error(err, "invalid CSV file name")
	}

	if err := os.Remove(sink.filePath(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, wrap.Errorf(err, "failed to remove CSV file for '%s'", name)
	}

	return false, nil
}

func (sink CSVSink) filePath(name string) string {
	return filepath.Join(sink.outputDir, name+FileExtension)
}

var _ export.Sink = CSVSink{}
