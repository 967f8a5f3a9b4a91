package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/utilities"
)

// MemStore is a thread-safe in-memory passbook store used for local runs
// and tests. Rows are copied on the way in and out.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]entity.Row
	ids  *utilities.IDGenerator
}

func NewMemStore(ids *utilities.IDGenerator) *MemStore {
	return &MemStore{data: make(map[string][]entity.Row), ids: ids}
}

func (m *MemStore) GetRecordsByProperties(ctx context.Context, table string, filter entity.Filter) ([]entity.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users := make(map[string]struct{}, len(filter.UserIDs))
	for _, id := range filter.UserIDs {
		users[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Row
	for _, row := range m.data[table] {
		if len(users) > 0 {
			uid, _ := row[entity.PropUserID].(string)
			if _, ok := users[uid]; !ok {
				continue
			}
		}
		if filter.TypeName != "" && row[entity.PropTypeName] != filter.TypeName {
			continue
		}
		out = append(out, row.Clone())
	}
	return out, nil
}

// InsertBulkRecord appends rows; either all rows are stored or none.
func (m *MemStore) InsertBulkRecord(ctx context.Context, table string, rows []entity.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepared := make([]entity.Row, 0, len(rows))
	for _, row := range rows {
		p, err := m.prepare(row)
		if err != nil {
			return err
		}
		prepared = append(prepared, p)
	}
	m.mu.Lock()
	m.data[table] = append(m.data[table], prepared...)
	m.mu.Unlock()
	return nil
}

// InsertRecord stores row unless a row with the same id already exists.
func (m *MemStore) InsertRecord(ctx context.Context, table string, row entity.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := m.prepare(row)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data[table] {
		if existing[entity.PropID] == p[entity.PropID] {
			return nil
		}
	}
	m.data[table] = append(m.data[table], p)
	return nil
}

func (m *MemStore) prepare(row entity.Row) (entity.Row, error) {
	for _, prop := range []string{entity.PropUserID, entity.PropTypeName} {
		if s, _ := row[prop].(string); s == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidRow, prop)
		}
	}
	if row[entity.PropEffectiveDate] == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRow, entity.PropEffectiveDate)
	}
	p := row.Clone()
	if id, _ := p[entity.PropID].(string); id == "" {
		p[entity.PropID] = m.ids.Next()
	}
	return p, nil
}
