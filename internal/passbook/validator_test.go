package passbook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/setting"
)

func testConfig() setting.Config {
	return setting.Config{
		SupportedTypeNames: []string{"competency"},
		Table:              "user_passbook",
		LegacyTable:        "user_passbook_legacy",
		AdminRole:          "ADMIN",
	}
}

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func decodeRead(t *testing.T, body string) *entity.ReadRequest {
	t.Helper()
	var env entity.Envelope[entity.ReadRequest]
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return env.Request
}

func TestValidateRead(t *testing.T) {
	v := NewValidator(testConfig())
	cases := []struct {
		name  string
		body  string
		admin bool
		want  string
	}{
		{name: "ok", body: `{"request":{"typeName":"competency"}}`},
		{name: "self read ignores userId", body: `{"request":{"typeName":"competency","userId":[""]}}`},
		{name: "admin ok", body: `{"request":{"typeName":"competency","userId":["u1",""]}}`, admin: true},
		{name: "no body", body: `{}`, want: "Invalid Passbook Read request."},
		{name: "null body", body: `{"request":null}`, want: "Invalid Passbook Read request."},
		{name: "empty body", body: `{"request":{}}`, admin: true, want: "Invalid Passbook Read request."},
		{
			name: "blank type",
			body: `{"request":{"typeName":"  ","userId":["u1"]}}`,
			want: "Request doesn't have mandatory parameters - [TypeName].",
		},
		{
			name: "empty type only",
			body: `{"request":{"typeName":""}}`,
			want: "Request doesn't have mandatory parameters - [TypeName].",
		},
		{
			name:  "admin empty type only",
			body:  `{"request":{"typeName":""}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - [UserId, TypeName].",
		},
		{
			name:  "admin null type only",
			body:  `{"request":{"typeName":null}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - [UserId, TypeName].",
		},
		{
			name:  "admin missing userId",
			body:  `{"request":{"typeName":"competency"}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - [UserId].",
		},
		{
			name:  "admin empty userId list and no type",
			body:  `{"request":{"userId":[]}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - [UserId, TypeName].",
		},
		{
			name:  "admin blank userIds",
			body:  `{"request":{"typeName":"competency","userId":["", null]}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - []. UserId contains null or empty.",
		},
		{
			name: "unknown type",
			body: `{"request":{"typeName":"unknown-type"}}`,
			want: "Request doesn't have mandatory parameters - []. Invalid TypeName value. Supported TypeNames are [competency].",
		},
		{
			name:  "missing and invalid together",
			body:  `{"request":{"typeName":"unknown-type"}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - [UserId]. Invalid TypeName value. Supported TypeNames are [competency].",
		},
		{
			name:  "both invalid",
			body:  `{"request":{"typeName":"unknown-type","userId":[" "]}}`,
			admin: true,
			want:  "Request doesn't have mandatory parameters - []. UserId contains null or empty. Invalid TypeName value. Supported TypeNames are [competency].",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errMsg(v.ValidateRead(decodeRead(t, tc.body), tc.admin)))
		})
	}
}

func TestValidateRead_ListsConfiguredTypes(t *testing.T) {
	cfg := testConfig()
	cfg.SupportedTypeNames = []string{"competency", "badge", "course"}
	err := NewValidator(cfg).ValidateRead(&entity.ReadRequest{TypeName: "nope"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Supported TypeNames are [competency, badge, course].")
}

func TestValidateUpdate(t *testing.T) {
	v := NewValidator(testConfig())
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "ok", body: `{"typeName":"competency","competencyDetails":[]}`},
		{name: "empty", body: `{}`, want: "Invalid Passbook Read request."},
		{name: "null type", body: `{"typeName":null,"x":1}`, want: "Request doesn't have mandatory parameters - [TypeName]."},
		{
			name: "unknown type",
			body: `{"typeName":"unknown-type"}`,
			want: "Request doesn't have mandatory parameters - []. Invalid TypeName value. Supported TypeNames are [competency].",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := entity.NewUpdateRequest([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, errMsg(v.ValidateUpdate(req)))
		})
	}

	assert.Equal(t, "Invalid Passbook Read request.", errMsg(v.ValidateUpdate(nil)))
}
