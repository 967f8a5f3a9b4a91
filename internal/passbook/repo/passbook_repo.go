package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/utilities"
)

// Table layout shared by the current and legacy passbook tables:
//
//	id             varchar(32) PRIMARY KEY
//	user_id        text NOT NULL
//	type_name      text NOT NULL
//	type_id        text NOT NULL DEFAULT ''
//	effective_date timestamptz (current) | uuid (legacy)
//	payload        jsonb, every other row property
//
// Properties with their own column never appear in payload.
var columnOf = map[string]string{
	entity.PropID:            "id",
	entity.PropUserID:        "user_id",
	entity.PropTypeName:      "type_name",
	entity.PropTypeID:        "type_id",
	entity.PropEffectiveDate: "effective_date",
}

const selectColumns = `id, user_id, type_name, type_id, effective_date, payload`

var ErrInvalidRow = errors.New("invalid passbook row")

// Repo is the Postgres-backed passbook store.
type Repo struct {
	db  *sqlx.DB
	ids *utilities.IDGenerator
}

// NewRepo constructs a Repo; rows inserted without an id get one from ids.
func NewRepo(db *sqlx.DB, ids *utilities.IDGenerator) *Repo {
	return &Repo{db: db, ids: ids}
}

// EnsureTable creates table and its lookup index if missing. legacy selects
// the old layout where effective_date holds a time-based UUID.
func (r *Repo) EnsureTable(ctx context.Context, table string, legacy bool) error {
	dateType := "timestamptz NOT NULL"
	if legacy {
		dateType = "uuid NOT NULL"
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id varchar(32) PRIMARY KEY,
  user_id text NOT NULL,
  type_name text NOT NULL,
  type_id text NOT NULL DEFAULT '',
  effective_date %s,
  payload jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %s ON %s (user_id, type_name);
`, pq.QuoteIdentifier(table), dateType, pq.QuoteIdentifier("idx_"+table+"_user_type"), pq.QuoteIdentifier(table))
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// GetRecordsByProperties returns the rows of table matching filter.
// A zero filter returns every row.
func (r *Repo) GetRecordsByProperties(ctx context.Context, table string, filter entity.Filter) ([]entity.Row, error) {
	q := `SELECT ` + selectColumns + ` FROM ` + pq.QuoteIdentifier(table)
	var (
		where []string
		args  []any
	)
	if len(filter.UserIDs) > 0 {
		args = append(args, pq.Array(filter.UserIDs))
		where = append(where, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}
	if filter.TypeName != "" {
		args = append(args, filter.TypeName)
		where = append(where, fmt.Sprintf("type_name = $%d", len(args)))
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY user_id, effective_date`

	rows, err := r.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []entity.Row
	for rows.Next() {
		cols := map[string]any{}
		if err := rows.MapScan(cols); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row, err := fromColumns(cols)
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

const insertColumns = `(id, user_id, type_name, type_id, effective_date, payload)
	VALUES (:id, :user_id, :type_name, :type_id, :effective_date, CAST(:payload AS jsonb))`

// InsertBulkRecord writes rows with a single multi-row INSERT.
func (r *Repo) InsertBulkRecord(ctx context.Context, table string, rows []entity.Row) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.toRecord(row)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	q := `INSERT INTO ` + pq.QuoteIdentifier(table) + ` ` + insertColumns
	if _, err := r.db.NamedExecContext(ctx, q, records); err != nil {
		return fmt.Errorf("bulk insert into %s: %w", table, err)
	}
	return nil
}

// InsertRecord writes one row. A row whose id already exists is left
// untouched, so replaying the same row is harmless.
func (r *Repo) InsertRecord(ctx context.Context, table string, row entity.Row) error {
	rec, err := r.toRecord(row)
	if err != nil {
		return err
	}
	q := `INSERT INTO ` + pq.QuoteIdentifier(table) + ` ` + insertColumns + ` ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

type record struct {
	ID            string `db:"id"`
	UserID        string `db:"user_id"`
	TypeName      string `db:"type_name"`
	TypeID        string `db:"type_id"`
	EffectiveDate any    `db:"effective_date"`
	Payload       string `db:"payload"`
}

func (r *Repo) toRecord(row entity.Row) (record, error) {
	rec := record{}
	var ok bool
	if rec.UserID, ok = row[entity.PropUserID].(string); !ok || rec.UserID == "" {
		return rec, fmt.Errorf("%w: missing %s", ErrInvalidRow, entity.PropUserID)
	}
	if rec.TypeName, ok = row[entity.PropTypeName].(string); !ok || rec.TypeName == "" {
		return rec, fmt.Errorf("%w: missing %s", ErrInvalidRow, entity.PropTypeName)
	}
	rec.TypeID, _ = row[entity.PropTypeID].(string)
	switch v := row[entity.PropEffectiveDate].(type) {
	case nil:
		return rec, fmt.Errorf("%w: missing %s", ErrInvalidRow, entity.PropEffectiveDate)
	case time.Time:
		rec.EffectiveDate = v.UTC()
	case fmt.Stringer:
		rec.EffectiveDate = v.String()
	default:
		rec.EffectiveDate = v
	}
	rec.ID, _ = row[entity.PropID].(string)
	if rec.ID == "" {
		rec.ID = r.ids.Next()
	}

	payload := map[string]any{}
	for k, v := range row {
		if _, ok := columnOf[k]; !ok {
			payload[k] = v
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return rec, fmt.Errorf("%w: encode payload: %v", ErrInvalidRow, err)
	}
	rec.Payload = string(b)
	return rec, nil
}

// fromColumns turns a scanned row back into row properties. Text columns may
// arrive as []byte depending on the column type.
func fromColumns(cols map[string]any) (entity.Row, error) {
	row := entity.Row{}
	if raw := cols["payload"]; raw != nil {
		var payload map[string]any
		if err := json.Unmarshal(asBytes(raw), &payload); err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		for k, v := range payload {
			row[k] = v
		}
	}
	for prop, col := range columnOf {
		switch v := cols[col].(type) {
		case nil:
		case []byte:
			row[prop] = string(v)
		case time.Time:
			row[prop] = v.UTC()
		default:
			row[prop] = v
		}
	}
	return row, nil
}

func asBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return nil
	}
}
