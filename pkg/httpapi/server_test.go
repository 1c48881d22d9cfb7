package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmesh/skillmesh/pkg/executor"
	"github.com/skillmesh/skillmesh/pkg/manager"
	"github.com/skillmesh/skillmesh/pkg/parser"
	"github.com/skillmesh/skillmesh/pkg/registry"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := registry.New()
	reg.AddSource(skilltypes.SourceDescriptor{Type: skilltypes.SourceTypeGit, Priority: 1})
	reg.RegisterSkill(&skilltypes.Skill{
		ID:          "greeting",
		Name:        "Greeting",
		Description: "Say hello",
		Source:      skilltypes.SourceRepository,
		Content:     "Hello, {{name}}!",
		Parameters: []skilltypes.ParameterSchema{
			{Name: "name", Type: skilltypes.TypeString, Required: true},
		},
		LastUpdated: time.Now(),
	})

	p, err := parser.New()
	require.NoError(t, err)

	mgr := manager.New(reg, executor.New(reg), p)
	server, err := NewServer(mgr, &ServerConfig{Host: "127.0.0.1", Port: 8315})
	require.NoError(t, err)
	return server
}

func doRequest(t *testing.T, server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestConfigValidation(t *testing.T) {
	_, err := NewServer(nil, &ServerConfig{Port: 0})
	assert.Error(t, err)
	_, err = NewServer(nil, &ServerConfig{Port: 70000})
	assert.Error(t, err)
}

func TestListSkills(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result manager.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "greeting", result.Skills[0].ID)
}

func TestListSkillsFilterAndSource(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/skills?filter=hello&source=repository", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result manager.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Total)

	rec = doRequest(t, server, "GET", "/api/skills?source=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSkill(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/skills/greeting", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var skill skilltypes.Skill
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &skill))
	assert.Equal(t, "Greeting", skill.Name)
}

func TestGetSkillNotFound(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/skills/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, string(skilltypes.ErrSkillNotFound), response["code"])
}

func TestGetSkillDocs(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/skills/greeting/docs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, {{name}}!", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
}

func TestInvokeSkill(t *testing.T) {
	server := newTestServer(t)

	body := []byte(`{"parameters": {"name": "Ada"}}`)
	rec := doRequest(t, server, "POST", "/api/skills/greeting/invoke", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result manager.InvokeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "Hello, Ada!", result.Content)
}

func TestInvokeSkillValidationError(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "POST", "/api/skills/greeting/invoke", []byte(`{"parameters": {}}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, string(skilltypes.ErrInvalidParams), response["code"])
	assert.NotEmpty(t, response["violations"])
}

func TestInvokeSkillBadBody(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "POST", "/api/skills/greeting/invoke", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, "GET", "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, float64(1), response["skills"])
}
