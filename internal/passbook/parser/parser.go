package parser

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
)

// Parser translates between stored rows and the request/response shapes of
// one passbook type.
type Parser interface {
	// TypeName is the registry key of this parser.
	TypeName() string
	// ParseDBInfo projects stored rows of this type into a read result.
	// Rows are only read, never modified.
	ParseDBInfo(rows []entity.Row) (*entity.Result, error)
	// ValidateUpdateRequest checks the type-specific part of req and builds
	// the rows to persist for userID. Request problems are returned as
	// *entity.ValidationError.
	ValidateUpdateRequest(req *entity.UpdateRequest, userID string) ([]entity.Row, error)
}

// ErrUnregisteredType is returned when no parser exists for a type name.
var ErrUnregisteredType = errors.New("no passbook parser registered for type")

// Registry maps type names to parsers. It is filled once at startup and is
// safe for concurrent reads afterwards.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry from parsers. A duplicate type name panics,
// since it can only come from wiring code.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		if _, dup := r.parsers[p.TypeName()]; dup {
			panic(fmt.Sprintf("parser: duplicate registration for %q", p.TypeName()))
		}
		r.parsers[p.TypeName()] = p
	}
	return r
}

// Default returns the registry holding every built-in passbook type.
func Default(logger *zap.SugaredLogger) *Registry {
	return NewRegistry(
		NewCompetencyParser(logger),
	)
}

// Resolve returns the parser for typeName.
func (r *Registry) Resolve(typeName string) (Parser, error) {
	p, ok := r.parsers[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredType, typeName)
	}
	return p, nil
}

// Covers returns an error naming every type in typeNames without a parser.
func (r *Registry) Covers(typeNames []string) error {
	var missing []string
	for _, tn := range typeNames {
		if _, ok := r.parsers[tn]; !ok {
			missing = append(missing, tn)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnregisteredType, missing)
	}
	return nil
}

// TypeNames lists registered type names in sorted order.
func (r *Registry) TypeNames() []string {
	out := make([]string, 0, len(r.parsers))
	for tn := range r.parsers {
		out = append(out, tn)
	}
	sort.Strings(out)
	return out
}
