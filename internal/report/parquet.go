package report

import (
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/brensch/packgrab/internal/orchestrator"
)

// FailureRow is the Parquet layout of one failure record.
type FailureRow struct {
	RunID      string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PackID     int32  `parquet:"name=pack_id, type=INT32"`
	Stage      string `parquet:"name=stage, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	StatusCode int32  `parquet:"name=status_code, type=INT32"`
	Message    string `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecordedAt int64  `parquet:"name=recorded_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// WriteParquet writes failures to a SNAPPY-compressed Parquet file at path,
// replacing any existing file.
func WriteParquet(path, runID string, failures []orchestrator.Failure) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file %s: %w", path, err)
	}
	defer func() {
		if closeErr := fw.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close parquet file %s: %w", path, closeErr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(FailureRow), 1)
	if err != nil {
		return fmt.Errorf("create parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	now := time.Now().UTC().UnixMilli()
	for _, f := range sortedByID(failures) {
		row := FailureRow{
			RunID:      runID,
			PackID:     int32(f.ID),
			Stage:      string(f.Stage),
			StatusCode: int32(statusCode(f.Err)),
			Message:    Cause(f.Err),
			RecordedAt: now,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return fmt.Errorf("write failure row for pack %d: %w", f.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file %s: %w", path, err)
	}
	return nil
}
