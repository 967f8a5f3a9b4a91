package passbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
)

// ErrMalformedTimeUUID is returned for a legacy effectiveDate that is not a
// version 1 (time-based) UUID.
var ErrMalformedTimeUUID = errors.New("effectiveDate is not a time-based UUID")

// ConvertEffectiveDate returns a copy of row whose effectiveDate holds the
// timestamp embedded in the legacy time-based UUID. Rows already holding a
// timestamp come back unchanged.
func ConvertEffectiveDate(row entity.Row) (entity.Row, error) {
	var (
		u   uuid.UUID
		err error
	)
	switch v := row[entity.PropEffectiveDate].(type) {
	case time.Time:
		return row.Clone(), nil
	case uuid.UUID:
		u = v
	case string:
		u, err = uuid.Parse(v)
	case []byte:
		u, err = uuid.ParseBytes(v)
	default:
		return nil, fmt.Errorf("%w: unsupported value %T", ErrMalformedTimeUUID, v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTimeUUID, err)
	}
	ts, err := timeFromUUID(u)
	if err != nil {
		return nil, err
	}
	out := row.Clone()
	out[entity.PropEffectiveDate] = ts
	return out, nil
}

func timeFromUUID(u uuid.UUID) (time.Time, error) {
	if u.Version() != 1 || u.Variant() != uuid.RFC4122 {
		return time.Time{}, fmt.Errorf("%w: %s is version %d", ErrMalformedTimeUUID, u, u.Version())
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}

// MigrationStats summarises one migration run.
type MigrationStats struct {
	Read     int
	Migrated int
	Failed   int
}

// Migrator copies legacy passbook rows into the current table, converting
// effectiveDate on the way. It is meant to run offline, once; rows keep
// their id so a second run inserts nothing new.
type Migrator struct {
	store  Store
	from   string
	to     string
	dryRun bool
	logger *zap.SugaredLogger
}

func NewMigrator(store Store, from, to string, dryRun bool, logger *zap.SugaredLogger) *Migrator {
	return &Migrator{store: store, from: from, to: to, dryRun: dryRun, logger: logger}
}

// Run migrates every legacy row. A row that cannot be converted or written
// is logged and counted, and the run continues.
func (m *Migrator) Run(ctx context.Context) (MigrationStats, error) {
	var stats MigrationStats
	rows, err := m.store.GetRecordsByProperties(ctx, m.from, entity.Filter{})
	if err != nil {
		return stats, fmt.Errorf("read legacy rows: %w", err)
	}
	stats.Read = len(rows)
	m.logger.Infow("migrating passbook rows", "from", m.from, "to", m.to, "rows", len(rows), "dryRun", m.dryRun)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		converted, err := ConvertEffectiveDate(row)
		if err != nil {
			stats.Failed++
			m.logger.Warnw("skip legacy row", "id", row[entity.PropID], "err", err)
			continue
		}
		if !m.dryRun {
			if err := m.store.InsertRecord(ctx, m.to, converted); err != nil {
				stats.Failed++
				m.logger.Errorw("insert migrated row", "id", row[entity.PropID], "err", err)
				continue
			}
		}
		stats.Migrated++
	}
	m.logger.Infow("passbook migration finished", "read", stats.Read, "migrated", stats.Migrated, "failed", stats.Failed)
	return stats, nil
}
