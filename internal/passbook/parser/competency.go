package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
)

// CompetencyTypeName is the type name served by CompetencyParser.
const CompetencyTypeName = "competency"

// Stored properties specific to competency rows.
const (
	propAcquiredDetails   = "acquiredDetails"
	propAdditionalParams  = "additionalParams"
	propAcquiredChannel   = "acquiredChannel"
	propCompetencyLevelID = "competencyLevelId"
)

// UserCompetencies is the read projection of one user's competency passbook.
type UserCompetencies struct {
	UserID       string       `json:"userId"`
	Competencies []Competency `json:"competencies"`
}

func (u *UserCompetencies) Owner() string { return u.UserID }

type Competency struct {
	CompetencyID     string            `json:"competencyId"`
	AdditionalParams map[string]string `json:"additionalParams,omitempty"`
	AcquiredDetails  []AcquiredDetail  `json:"acquiredDetails"`
}

// AcquiredDetail is one acquisition event of a competency, i.e. one stored row.
type AcquiredDetail struct {
	AcquiredChannel   string            `json:"acquiredChannel"`
	CompetencyLevelID string            `json:"competencyLevelId"`
	EffectiveDate     time.Time         `json:"effectiveDate"`
	AdditionalParams  map[string]string `json:"additionalParams,omitempty"`
}

type competencyUpdate struct {
	CompetencyDetails []competencyDetail `json:"competencyDetails"`
}

type competencyDetail struct {
	CompetencyID     string            `json:"competencyId"`
	AdditionalParams map[string]string `json:"additionalParams"`
	AcquiredDetails  *acquiredInput    `json:"acquiredDetails"`
}

type acquiredInput struct {
	AcquiredChannel   string            `json:"acquiredChannel"`
	CompetencyLevelID string            `json:"competencyLevelId"`
	EffectiveDate     *time.Time        `json:"effectiveDate,omitempty"`
	AdditionalParams  map[string]string `json:"additionalParams"`
}

// CompetencyParser handles the "competency" passbook type.
//
// Malformed stored rows are skipped and counted; a read never fails because
// of them.
type CompetencyParser struct {
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewCompetencyParser(logger *zap.SugaredLogger) *CompetencyParser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CompetencyParser{logger: logger, now: time.Now}
}

func (p *CompetencyParser) TypeName() string { return CompetencyTypeName }

func (p *CompetencyParser) ValidateUpdateRequest(req *entity.UpdateRequest, userID string) ([]entity.Row, error) {
	var body competencyUpdate
	if err := json.Unmarshal(req.Raw, &body); err != nil {
		return nil, entity.Invalid(fmt.Sprintf("Invalid competencyDetails. %v", err))
	}
	if len(body.CompetencyDetails) == 0 {
		return nil, entity.Invalid("Request doesn't have mandatory parameters - [competencyDetails].")
	}

	var problems []string
	for i, d := range body.CompetencyDetails {
		var missing []string
		if strings.TrimSpace(d.CompetencyID) == "" {
			missing = append(missing, "competencyId")
		}
		if d.AcquiredDetails == nil {
			missing = append(missing, propAcquiredDetails)
		} else {
			if strings.TrimSpace(d.AcquiredDetails.AcquiredChannel) == "" {
				missing = append(missing, propAcquiredDetails+"."+propAcquiredChannel)
			}
			if strings.TrimSpace(d.AcquiredDetails.CompetencyLevelID) == "" {
				missing = append(missing, propAcquiredDetails+"."+propCompetencyLevelID)
			}
		}
		if len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("competencyDetails[%d] is missing [%s].", i, strings.Join(missing, ", ")))
		}
	}
	if len(problems) > 0 {
		return nil, entity.Invalid(strings.Join(problems, " "))
	}

	// timestamptz keeps microseconds
	now := p.now().UTC().Truncate(time.Microsecond)
	rows := make([]entity.Row, 0, len(body.CompetencyDetails))
	for _, d := range body.CompetencyDetails {
		effective := now
		if d.AcquiredDetails.EffectiveDate != nil && !d.AcquiredDetails.EffectiveDate.IsZero() {
			effective = d.AcquiredDetails.EffectiveDate.UTC().Truncate(time.Microsecond)
		}
		acquired := map[string]any{
			propAcquiredChannel:   d.AcquiredDetails.AcquiredChannel,
			propCompetencyLevelID: d.AcquiredDetails.CompetencyLevelID,
		}
		if len(d.AcquiredDetails.AdditionalParams) > 0 {
			acquired[propAdditionalParams] = copyStrings(d.AcquiredDetails.AdditionalParams)
		}
		rows = append(rows, entity.Row{
			entity.PropUserID:        userID,
			entity.PropTypeName:      CompetencyTypeName,
			entity.PropTypeID:        d.CompetencyID,
			entity.PropEffectiveDate: effective,
			propAcquiredDetails:      acquired,
			propAdditionalParams:     copyStrings(d.AdditionalParams),
		})
	}
	return rows, nil
}

type competencyRow struct {
	userID       string
	competencyID string
	params       map[string]string
	detail       AcquiredDetail
}

func (p *CompetencyParser) ParseDBInfo(rows []entity.Row) (*entity.Result, error) {
	var (
		users   []*UserCompetencies
		byUser  = map[string]*UserCompetencies{}
		byComp  = map[string]map[string]int{}
		latest  = map[string]map[string]time.Time{}
		skipped int
	)
	for _, raw := range rows {
		r, err := decodeCompetencyRow(raw)
		if err != nil {
			skipped++
			p.logger.Debugw("skip malformed competency row", "id", raw[entity.PropID], "err", err)
			continue
		}
		u, ok := byUser[r.userID]
		if !ok {
			u = &UserCompetencies{UserID: r.userID, Competencies: []Competency{}}
			byUser[r.userID] = u
			byComp[r.userID] = map[string]int{}
			latest[r.userID] = map[string]time.Time{}
			users = append(users, u)
		}
		idx, ok := byComp[r.userID][r.competencyID]
		if !ok {
			u.Competencies = append(u.Competencies, Competency{CompetencyID: r.competencyID})
			idx = len(u.Competencies) - 1
			byComp[r.userID][r.competencyID] = idx
		}
		c := &u.Competencies[idx]
		c.AcquiredDetails = append(c.AcquiredDetails, r.detail)
		// competency-level params follow the most recent acquisition
		if seen, ok := latest[r.userID][r.competencyID]; !ok || !r.detail.EffectiveDate.Before(seen) {
			latest[r.userID][r.competencyID] = r.detail.EffectiveDate
			c.AdditionalParams = r.params
		}
	}
	if skipped > 0 {
		p.logger.Warnw("skipped malformed passbook rows", "typeName", CompetencyTypeName, "skipped", skipped, "total", len(rows))
	}

	content := make([]entity.Projection, 0, len(users))
	for _, u := range users {
		for i := range u.Competencies {
			details := u.Competencies[i].AcquiredDetails
			sort.SliceStable(details, func(a, b int) bool {
				return details[a].EffectiveDate.After(details[b].EffectiveDate)
			})
		}
		content = append(content, u)
	}
	return &entity.Result{Count: len(content), Content: content}, nil
}

func decodeCompetencyRow(raw entity.Row) (competencyRow, error) {
	var r competencyRow
	var ok bool
	if tn, _ := raw[entity.PropTypeName].(string); tn != CompetencyTypeName {
		return r, fmt.Errorf("unexpected typeName %q", tn)
	}
	if r.userID, ok = raw[entity.PropUserID].(string); !ok || r.userID == "" {
		return r, fmt.Errorf("missing %s", entity.PropUserID)
	}
	if r.competencyID, ok = raw[entity.PropTypeID].(string); !ok || r.competencyID == "" {
		return r, fmt.Errorf("missing %s", entity.PropTypeID)
	}
	eff, err := asTime(raw[entity.PropEffectiveDate])
	if err != nil {
		return r, fmt.Errorf("%s: %w", entity.PropEffectiveDate, err)
	}
	acquired, err := asMap(raw[propAcquiredDetails])
	if err != nil {
		return r, fmt.Errorf("%s: %w", propAcquiredDetails, err)
	}
	channel, _ := acquired[propAcquiredChannel].(string)
	level, _ := acquired[propCompetencyLevelID].(string)
	if channel == "" || level == "" {
		return r, fmt.Errorf("%s lacks %s or %s", propAcquiredDetails, propAcquiredChannel, propCompetencyLevelID)
	}
	detailParams, err := asStringMap(acquired[propAdditionalParams])
	if err != nil {
		return r, fmt.Errorf("%s.%s: %w", propAcquiredDetails, propAdditionalParams, err)
	}
	if r.params, err = asStringMap(raw[propAdditionalParams]); err != nil {
		return r, fmt.Errorf("%s: %w", propAdditionalParams, err)
	}
	r.detail = AcquiredDetail{
		AcquiredChannel:   channel,
		CompetencyLevelID: level,
		EffectiveDate:     eff,
		AdditionalParams:  detailParams,
	}
	return r, nil
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return t, fmt.Errorf("zero time")
		}
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
}

// asMap accepts a decoded object or its JSON encoding.
func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, nil
	case []byte:
		return decodeObject(m)
	case json.RawMessage:
		return decodeObject(m)
	case string:
		return decodeObject([]byte(m))
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// asStringMap is asMap restricted to string values. nil yields nil.
func asStringMap(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]string); ok {
		return copyStrings(m), nil
	}
	m, err := asMap(v)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("value of %q is %T, want string", k, val)
		}
		out[k] = s
	}
	return out, nil
}

func decodeObject(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func copyStrings(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
