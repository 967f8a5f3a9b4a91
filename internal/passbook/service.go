package passbook

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/parser"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/setting"
)

// Store is the record store the service reads from and appends to.
type Store interface {
	GetRecordsByProperties(ctx context.Context, table string, filter entity.Filter) ([]entity.Row, error)
	InsertBulkRecord(ctx context.Context, table string, rows []entity.Row) error
	InsertRecord(ctx context.Context, table string, row entity.Row) error
}

// Caller-facing messages for internal failures. Error detail only goes to
// the server log.
const (
	MsgReadFailed     = "Failed to read passbook details."
	MsgUpdateFailed   = "Failed to update passbook details."
	MsgBulkAddFailed  = "Failed to add records into DB"
	MsgInternalFailed = "Passbook type is not available."
)

// Service orchestrates validation, parser dispatch and store access. It keeps
// no per-call state and is safe for concurrent use.
type Service struct {
	cfg       setting.Config
	validator *Validator
	registry  *parser.Registry
	store     Store
	logger    *zap.SugaredLogger
}

// NewService wires a Service. It fails if a supported type has no parser.
func NewService(cfg setting.Config, registry *parser.Registry, store Store, logger *zap.SugaredLogger) (*Service, error) {
	if err := registry.Covers(cfg.SupportedTypeNames); err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		validator: NewValidator(cfg),
		registry:  registry,
		store:     store,
		logger:    logger,
	}, nil
}

// GetPassbook reads the caller's own passbook. Any UserId in the body is
// ignored.
func (s *Service) GetPassbook(ctx context.Context, userID string, req *entity.ReadRequest) *entity.Response {
	return s.read(ctx, entity.NewResponse(entity.APIRead), []string{userID}, req, false)
}

// GetPassbookByAdmin reads the passbooks of the users named in the body.
func (s *Service) GetPassbookByAdmin(ctx context.Context, req *entity.ReadRequest) *entity.Response {
	resp := entity.NewResponse(entity.APIAdminRead)
	var userIDs []string
	if req != nil {
		userIDs = req.UserIDs
	}
	return s.read(ctx, resp, userIDs, req, true)
}

func (s *Service) read(ctx context.Context, resp *entity.Response, userIDs []string, req *entity.ReadRequest, isAdmin bool) *entity.Response {
	if err := s.validator.ValidateRead(req, isAdmin); err != nil {
		s.logger.Debugw("invalid passbook read", "api", resp.ID, "err", err)
		return resp.Fail(http.StatusBadRequest, err.Error())
	}

	p, err := s.registry.Resolve(req.TypeName)
	if err != nil {
		return s.fault(resp, err)
	}
	rows, err := s.store.GetRecordsByProperties(ctx, s.cfg.Table, entity.Filter{UserIDs: userIDs, TypeName: req.TypeName})
	if err != nil {
		s.logger.Errorw("read passbook records", "typeName", req.TypeName, "users", len(userIDs), "err", err)
		return resp.Fail(http.StatusBadRequest, MsgReadFailed)
	}
	result, err := p.ParseDBInfo(rows)
	if err != nil {
		s.logger.Errorw("parse passbook records", "typeName", req.TypeName, "rows", len(rows), "err", err)
		return resp.Fail(http.StatusBadRequest, MsgReadFailed)
	}
	resp.Result = result
	return resp
}

// UpdatePassbook appends the entries in req to the caller's passbook with a
// single bulk insert. A failed insert is reported as a whole even if the
// store applied part of it.
func (s *Service) UpdatePassbook(ctx context.Context, userID string, req *entity.UpdateRequest) *entity.Response {
	resp := entity.NewResponse(entity.APIAdd)
	if err := s.validator.ValidateUpdate(req); err != nil {
		s.logger.Debugw("invalid passbook update", "err", err)
		return resp.Fail(http.StatusBadRequest, err.Error())
	}

	p, err := s.registry.Resolve(req.TypeName)
	if err != nil {
		return s.fault(resp, err)
	}
	rows, err := p.ValidateUpdateRequest(req, userID)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			s.logger.Debugw("invalid passbook update", "typeName", req.TypeName, "err", err)
			return resp.Fail(http.StatusBadRequest, verr.Msg)
		}
		s.logger.Errorw("build passbook records", "typeName", req.TypeName, "err", err)
		return resp.Fail(http.StatusBadRequest, MsgUpdateFailed)
	}
	if err := s.store.InsertBulkRecord(ctx, s.cfg.Table, rows); err != nil {
		s.logger.Errorw("insert passbook records", "typeName", req.TypeName, "rows", len(rows), "err", err)
		return resp.Fail(http.StatusBadRequest, MsgBulkAddFailed)
	}
	s.logger.Debugw("passbook updated", "typeName", req.TypeName, "rows", len(rows))
	return resp
}

// fault reports a parser lookup failure after validation passed; the allow-list
// and the registry disagree.
func (s *Service) fault(resp *entity.Response, err error) *entity.Response {
	s.logger.Errorw("passbook configuration fault", "err", err)
	return resp.Fail(http.StatusInternalServerError, MsgInternalFailed)
}
