package passbook

import (
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/setting"
)

const (
	paramUserID   = "UserId"
	paramTypeName = "TypeName"

	msgInvalidRequest = "Invalid Passbook Read request."
)

// Validator performs the checks common to every passbook type. It holds no
// state beyond the settings it was built with.
type Validator struct {
	cfg setting.Config
}

func NewValidator(cfg setting.Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateRead checks a read body. Admin reads must name at least one
// non-blank UserId.
func (v *Validator) ValidateRead(req *entity.ReadRequest, isAdmin bool) error {
	if req.IsEmpty() {
		return entity.Invalid(msgInvalidRequest)
	}
	var c checks
	if isAdmin {
		if len(req.UserIDs) == 0 {
			c.missing = append(c.missing, paramUserID)
		} else if allBlank(req.UserIDs) {
			c.invalid = append(c.invalid, paramUserID+" contains null or empty.")
		}
	}
	v.checkTypeName(req.TypeName, &c)
	return c.err()
}

// ValidateUpdate checks the generic part of an update body. Type-specific
// fields are left to the type's parser.
func (v *Validator) ValidateUpdate(req *entity.UpdateRequest) error {
	if req.IsEmpty() {
		return entity.Invalid(msgInvalidRequest)
	}
	var c checks
	v.checkTypeName(req.TypeName, &c)
	return c.err()
}

func (v *Validator) checkTypeName(typeName string, c *checks) {
	if strings.TrimSpace(typeName) == "" {
		c.missing = append(c.missing, paramTypeName)
		return
	}
	if !v.cfg.Supports(typeName) {
		c.invalid = append(c.invalid, fmt.Sprintf("Invalid %s value. Supported TypeNames are [%s].",
			paramTypeName, strings.Join(v.cfg.SupportedTypeNames, ", ")))
	}
}

// checks collects missing-parameter and invalid-value findings; both kinds
// are reported together, missing parameters first.
type checks struct {
	missing []string
	invalid []string
}

func (c checks) err() error {
	if len(c.missing) == 0 && len(c.invalid) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Request doesn't have mandatory parameters - [%s].", strings.Join(c.missing, ", "))
	for _, msg := range c.invalid {
		b.WriteString(" ")
		b.WriteString(msg)
	}
	return entity.Invalid(b.String())
}

func allBlank(ids []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return false
		}
	}
	return true
}
