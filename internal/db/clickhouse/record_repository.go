package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const TableName = "landscape_records"

var columns = []string{
	"landscape_token",
	"timestamp",
	"node_host_name",
	"node_ip_address",
	"app_name",
	"app_pid",
	"app_language",
	"package_name",
	"class_name",
	"method_name",
}

// sortingKey covers every column, so FINAL only collapses rows that are equal records.
var sortingKey = []string{
	"landscape_token",
	"timestamp",
	"node_host_name",
	"node_ip_address",
	"app_name",
	"app_pid",
	"app_language",
	"package_name",
	"class_name",
	"method_name",
}

// Equal rows collapse on merge, so redelivered records do not pile up.
func createTableStatement() string {
	return `
CREATE TABLE IF NOT EXISTS ` + TableName + ` (
    landscape_token String,
    timestamp       Int64,
    node_host_name  String,
    node_ip_address String,
    app_name        String,
    app_pid         Int64,
    app_language    String,
    package_name    String,
    class_name      String,
    method_name     String
) ENGINE = ReplacingMergeTree()
PARTITION BY toYYYYMM(toDateTime(intDiv(timestamp, 1000)))
ORDER BY (` + strings.Join(sortingKey, ", ") + `);
`
}

// Conn is the part of driver.Conn the repository needs.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

type RecordRepository struct {
	conn    Conn
	timeout time.Duration
	logger  *zap.Logger
}

// Connect opens a connection pool and makes sure the record table exists.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	return connect(cfg, clickhouse.Open)
}

func connect(cfg config.ClickHouseConfig, open func(*clickhouse.Options) (driver.Conn, error)) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection to %s: %w", addr, err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", TableName, err)
	}
	return conn, nil
}

func NewRecordRepository(conn Conn, timeout time.Duration, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		conn:    conn,
		timeout: timeout,
		logger:  logger,
	}
}

func (rr *RecordRepository) Add(ctx context.Context, record model.LandscapeRecord) error {
	insertCtx, cancel := context.WithTimeout(ctx, rr.timeout)
	defer cancel()
	if err := rr.conn.Exec(insertCtx, insertStatement(), toRow(record)...); err != nil {
		return repository.NewPersistingError("insert", err)
	}
	return nil
}

func (rr *RecordRepository) FindByToken(
	ctx context.Context,
	landscapeToken string,
	window repository.TimeWindow,
) ([]model.LandscapeRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, rr.timeout)
	defer cancel()

	query, args := selectByTokenStatement(landscapeToken, window)
	rows, err := rr.conn.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records of landscape %s: %w", landscapeToken, err)
	}
	defer rows.Close()

	var records []model.LandscapeRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record rows: %w", err)
	}
	rr.logger.Debug(
		"Found landscape records",
		zap.String("landscape_token", landscapeToken),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func insertStatement() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", TableName, strings.Join(columns, ", "), placeholders)
}

func selectByTokenStatement(landscapeToken string, window repository.TimeWindow) (string, []any) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s FINAL WHERE landscape_token = ?", strings.Join(columns, ", "), TableName))
	args := []any{landscapeToken}
	if window.From != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, *window.From)
	}
	if window.To != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, *window.To)
	}
	sb.WriteString(" ORDER BY timestamp ASC")
	return sb.String(), args
}
