package setting

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PASSBOOK_CONFIG_FILE", "PASSBOOK_SUPPORTED_TYPE_NAMES", "PASSBOOK_TABLE",
		"PASSBOOK_LEGACY_TABLE", "PASSBOOK_ADMIN_ROLE",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"competency"}, cfg.SupportedTypeNames)
	assert.Equal(t, "user_passbook", cfg.Table)
	assert.Equal(t, "user_passbook_legacy", cfg.LegacyTable)
	assert.Equal(t, "ADMIN", cfg.AdminRole)
}

func TestConfigFromEnv_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
supported_type_names: [competency, badge]
table: passbook_v2
admin_role: PASSBOOK_ADMIN
`), 0o600))

	clearEnv(t)
	t.Setenv("PASSBOOK_CONFIG_FILE", path)
	t.Setenv("PASSBOOK_ADMIN_ROLE", "ROOT")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"competency", "badge"}, cfg.SupportedTypeNames)
	assert.Equal(t, "passbook_v2", cfg.Table)
	assert.Equal(t, "user_passbook_legacy", cfg.LegacyTable)
	assert.Equal(t, "ROOT", cfg.AdminRole)

	t.Setenv("PASSBOOK_SUPPORTED_TYPE_NAMES", " competency , ,course")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"competency", "course"}, cfg.SupportedTypeNames)
}

func TestConfigFromEnv_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PASSBOOK_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := ConfigFromEnv()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, defaults().Validate())

	c := defaults()
	c.SupportedTypeNames = nil
	assert.Error(t, c.Validate())

	c = defaults()
	c.LegacyTable = c.Table
	assert.Error(t, c.Validate())
}

func TestConfig_Supports(t *testing.T) {
	c := defaults()
	assert.True(t, c.Supports("competency"))
	assert.False(t, c.Supports("Competency"))
	assert.False(t, c.Supports(""))
}

func TestHandler_List(t *testing.T) {
	h := NewHandler(Config{SupportedTypeNames: []string{"competency", "badge"}}, zap.NewNop().Sugar())
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/passbook/v1/settings", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"supportedTypeNames":["competency","badge"]}`, rec.Body.String())
}
