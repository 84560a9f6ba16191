package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/ratelimit"
	testutil "github.com/trezcool/shule/tests"
)

const testPwd = "Str0ng!Pass#9"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// apiEnv is a Server running on a fresh in-memory database.
type apiEnv struct {
	*testutil.Env
	app     *echoapi.Server
	limiter *ratelimit.MemoryLimiter
}

func setup(t *testing.T) *apiEnv {
	t.Helper()
	env := testutil.NewEnv()
	limiter := ratelimit.NewMemoryLimiter()
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           env.Conf,
		Logger:         logsvc.NewNopLogger(),
		Validate:       env.Validate,
		Translator:     env.Translator,
		RateLimiter:    limiter,
		DisableReqLogs: true,
		UserSvc:        env.UserSvc,
		SchoolSvc:      env.SchoolSvc,
		AccountSvc:     env.AccountSvc,
		AttendanceSvc:  env.AttendanceSvc,
		DisciplineSvc:  env.DisciplineSvc,
		GradingSvc:     env.GradingSvc,
	})
	return &apiEnv{Env: env, app: app, limiter: limiter}
}

func (ae *apiEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ae.app.ServeHTTP(rec, req)
	return rec
}

func (ae *apiEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			rec := ae.do(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func (ae *apiEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(ae.Conf, echoapi.NewClaims(ae.Conf, usr))
	require.NoError(t, err)
	return token
}

// adminToken creates an admin and returns its token.
func (ae *apiEnv) adminToken(t *testing.T) string {
	t.Helper()
	return ae.token(t, ae.Admin(t, "admin").User)
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// checkCodeAndData checks the status code, and the body when wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	assert.NoError(t, err)
	assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
}

// fieldErrors decodes a 400 response keyed by field.
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var flds map[string]string
	decode(t, rec, &flds)
	return flds
}

func TestServer_home(t *testing.T) {
	ae := setup(t)
	ae.run(t, []httpTest{
		{name: "health", path: "/api/health", wantData: []byte(`{"status":"ok"}`)},
		{name: "unknown route", path: "/api/nope", wantCode: http.StatusNotFound},
	})

	rec := ae.do(newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Shule API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	ae := setup(t)
	ae.do(newRequest(http.MethodGet, "/api/health"))
	ae.do(newRequest(http.MethodGet, "/api/users"))

	rec := ae.do(newRequest(http.MethodGet, "/metrics"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `shule_http_requests_total{method="GET",path="/api/health",status="200"} 1`)
	assert.Contains(t, body, `shule_http_requests_total{method="GET",path="/api/users",status="401"} 1`)
	assert.Contains(t, body, `shule_build_info{build="test"} 1`)
}
