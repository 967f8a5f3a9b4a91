package entity

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRequest_Unmarshal(t *testing.T) {
	var env Envelope[UpdateRequest]
	require.NoError(t, json.Unmarshal([]byte(`{"request":{"typeName":"competency","competencyDetails":[]}}`), &env))
	require.NotNil(t, env.Request)
	assert.Equal(t, "competency", env.Request.TypeName)
	assert.False(t, env.Request.IsEmpty())
	assert.JSONEq(t, `{"typeName":"competency","competencyDetails":[]}`, string(env.Request.Raw))

	env = Envelope[UpdateRequest]{}
	require.NoError(t, json.Unmarshal([]byte(`{"request":{}}`), &env))
	assert.True(t, env.Request.IsEmpty())

	env = Envelope[UpdateRequest]{}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &env))
	assert.True(t, env.Request.IsEmpty())

	assert.Error(t, json.Unmarshal([]byte(`{"request":{"typeName":7}}`), &env))
	assert.Error(t, json.Unmarshal([]byte(`{"request":[1]}`), &env))
}

func TestReadRequest_IsEmpty(t *testing.T) {
	var nilReq *ReadRequest
	assert.True(t, nilReq.IsEmpty())
	assert.True(t, (&ReadRequest{}).IsEmpty())
	assert.False(t, (&ReadRequest{UserIDs: []string{}}).IsEmpty())
	assert.False(t, (&ReadRequest{TypeName: "competency"}).IsEmpty())

	var env Envelope[ReadRequest]
	require.NoError(t, json.Unmarshal([]byte(`{"request":{"typeName":""}}`), &env))
	assert.False(t, env.Request.IsEmpty())
	env = Envelope[ReadRequest]{}
	require.NoError(t, json.Unmarshal([]byte(`{"request":{"typeName":null}}`), &env))
	assert.False(t, env.Request.IsEmpty())
	env = Envelope[ReadRequest]{}
	require.NoError(t, json.Unmarshal([]byte(`{"request":{}}`), &env))
	assert.True(t, env.Request.IsEmpty())
}

func TestResponse_Fail(t *testing.T) {
	resp := NewResponse(APIRead)
	assert.True(t, resp.OK())
	assert.NotEmpty(t, resp.Params.ResMsgID)
	resp.Result = &Result{Content: []Projection{}}

	resp.Fail(http.StatusBadRequest, "nope")
	assert.False(t, resp.OK())

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "api.user.passbook.read", out["id"])
	assert.Equal(t, float64(400), out["responseCode"])
	assert.Equal(t, map[string]any{"resmsgid": resp.Params.ResMsgID, "status": "failed", "errmsg": "nope"}, out["params"])
	assert.NotContains(t, out, "result")
}

func TestRow_Clone(t *testing.T) {
	r := Row{PropUserID: "u1"}
	c := r.Clone()
	c[PropUserID] = "u2"
	assert.Equal(t, "u1", r[PropUserID])
}
