package clickhouse

import (
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// toRow flattens a record into column order, node and application included.
func toRow(record model.LandscapeRecord) []any {
	return []any{
		record.LandscapeToken,
		record.Timestamp,
		record.Node.HostName,
		record.Node.IPAddress,
		record.Application.Name,
		record.Application.PID,
		record.Application.Language,
		record.Package,
		record.Class,
		record.Method,
	}
}

func scanRecord(row rowScanner) (model.LandscapeRecord, error) {
	var record model.LandscapeRecord
	err := row.Scan(
		&record.LandscapeToken,
		&record.Timestamp,
		&record.Node.HostName,
		&record.Node.IPAddress,
		&record.Application.Name,
		&record.Application.PID,
		&record.Application.Language,
		&record.Package,
		&record.Class,
		&record.Method,
	)
	return record, err
}
