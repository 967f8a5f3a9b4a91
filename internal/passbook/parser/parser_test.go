package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
)

type stubParser struct{ name string }

func (s stubParser) TypeName() string { return s.name }
func (s stubParser) ParseDBInfo([]entity.Row) (*entity.Result, error) {
	return &entity.Result{Content: []entity.Projection{}}, nil
}
func (s stubParser) ValidateUpdateRequest(*entity.UpdateRequest, string) ([]entity.Row, error) {
	return nil, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := Default(nil)

	p, err := r.Resolve("competency")
	require.NoError(t, err)
	assert.Equal(t, "competency", p.TypeName())

	_, err = r.Resolve("badge")
	assert.ErrorIs(t, err, ErrUnregisteredType)
}

func TestRegistry_Extend(t *testing.T) {
	r := NewRegistry(NewCompetencyParser(nil), stubParser{name: "badge"})
	assert.Equal(t, []string{"badge", "competency"}, r.TypeNames())

	p, err := r.Resolve("badge")
	require.NoError(t, err)
	assert.Equal(t, "badge", p.TypeName())
}

func TestRegistry_Covers(t *testing.T) {
	r := Default(nil)
	assert.NoError(t, r.Covers([]string{"competency"}))

	err := r.Covers([]string{"competency", "badge", "course"})
	require.ErrorIs(t, err, ErrUnregisteredType)
	assert.Contains(t, err.Error(), "[badge course]")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(stubParser{name: "x"}, stubParser{name: "x"})
	})
}
