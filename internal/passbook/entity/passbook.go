package entity

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/utilities"
)

// Row is a stored passbook record as seen by the store: property name to value.
// It is the only loosely-typed shape in the passbook code and never crosses
// the store/parser boundary.
type Row map[string]any

// Stored property names shared by every passbook type.
const (
	PropID            = "id"
	PropUserID        = "userId"
	PropTypeName      = "typeName"
	PropTypeID        = "typeId"
	PropEffectiveDate = "effectiveDate"
)

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filter selects stored rows. Zero fields match everything.
type Filter struct {
	UserIDs  []string
	TypeName string
}

// Envelope is the outer request shape: {"request": {...}}.
type Envelope[T any] struct {
	Request *T `json:"request"`
}

// ReadRequest is the body of a self-service or admin read.
// UserIDs is only honoured on the admin read.
type ReadRequest struct {
	TypeName string   `json:"typeName"`
	UserIDs  []string `json:"userId,omitempty"`
	fields   int
}

func (r *ReadRequest) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	type plain ReadRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = ReadRequest(p)
	r.fields = len(fields)
	return nil
}

// IsEmpty reports whether no field of the body was supplied. A key present
// with a blank or null value still counts as supplied.
func (r *ReadRequest) IsEmpty() bool {
	return r == nil || (r.fields == 0 && r.TypeName == "" && r.UserIDs == nil)
}

// UpdateRequest is the body of an update. Only typeName is common to every
// type; the remaining fields are kept raw and decoded by the type's parser.
type UpdateRequest struct {
	TypeName string
	Raw      json.RawMessage
	fields   int
}

func (r *UpdateRequest) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	r.fields = len(fields)
	r.Raw = append(r.Raw[:0], b...)
	r.TypeName = ""
	if tn, ok := fields["typeName"]; ok && !bytes.Equal(bytes.TrimSpace(tn), []byte("null")) {
		if err := json.Unmarshal(tn, &r.TypeName); err != nil {
			return err
		}
	}
	return nil
}

func (r UpdateRequest) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("{}"), nil
	}
	return r.Raw, nil
}

// IsEmpty reports whether the body carried no fields at all.
func (r *UpdateRequest) IsEmpty() bool {
	return r == nil || r.fields == 0
}

// NewUpdateRequest builds an UpdateRequest from an encoded body.
func NewUpdateRequest(body []byte) (*UpdateRequest, error) {
	var r UpdateRequest
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Projection is one element of a read response's content, shaped by the
// parser of the requested type.
type Projection interface {
	Owner() string
}

// API ids reported in the response envelope.
const (
	APIRead      = "api.user.passbook.read"
	APIAdminRead = "api.admin.passbook.read"
	APIAdd       = "api.user.passbook.add"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type Params struct {
	ResMsgID string `json:"resmsgid"`
	Status   string `json:"status"`
	ErrMsg   string `json:"errmsg,omitempty"`
}

type Result struct {
	Count   int          `json:"count"`
	Content []Projection `json:"content"`
}

// Response is returned by every passbook operation.
type Response struct {
	ID           string    `json:"id"`
	Ver          string    `json:"ver"`
	Ts           time.Time `json:"ts"`
	Params       Params    `json:"params"`
	ResponseCode int       `json:"responseCode"`
	Result       *Result   `json:"result,omitempty"`
}

// NewResponse returns a successful response for api with no result.
func NewResponse(api string) *Response {
	return &Response{
		ID:           api,
		Ver:          "v1",
		Ts:           time.Now().UTC(),
		Params:       Params{ResMsgID: utilities.NewKSUID(), Status: StatusSuccess},
		ResponseCode: http.StatusOK,
	}
}

// Fail marks the response failed with msg and code.
func (r *Response) Fail(code int, msg string) *Response {
	r.Params.Status = StatusFailed
	r.Params.ErrMsg = msg
	r.ResponseCode = code
	r.Result = nil
	return r
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.Params.Status == StatusSuccess
}

// ValidationError is a caller-facing request problem.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid returns a *ValidationError with msg.
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
