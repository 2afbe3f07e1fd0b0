package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jttracker/internal/api/middleware"
	"jttracker/internal/core/model"
	"jttracker/internal/core/repository"
	"jttracker/internal/core/service"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/dispatcher"
)

const fixedFrame = "243000123456190a002c18112017052222325148114086210745" +
	"5a000003e80901020304000055" + "0607008b1403000000" + "2a"

const testSecret = "router-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": "operator-1",
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func newTestRouter() http.Handler {
	logger := zap.NewNop()
	devices := service.NewDeviceService(repository.NewInMemoryDeviceRepository(), nil, logger)
	decoder := dispatcher.New(devices, logger, protocol.Options{})
	positions := service.NewPositionService(repository.NewInMemoryPositionRepository(), devices, decoder, nil, logger)
	return NewRouter(devices, positions, testSecret, logger)
}

func doAuth(h http.Handler, method, target, body, authorization string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	h.ServeHTTP(rec, req)
	return rec
}

var bearer string

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	return doAuth(h, method, target, body, bearer)
}

func TestMain(m *testing.M) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte(testSecret))
	if err != nil {
		panic(err)
	}
	bearer = "Bearer " + token
	os.Exit(m.Run())
}

func TestRawFrameFlow(t *testing.T) {
	h := newTestRouter()

	rec := do(h, http.MethodPost, "/api/positions/raw", `{"frame":"`+fixedFrame+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/api/devices", `{"name":"lock 3","uniqueId":"3000123456","protocol":"jt701d"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var device model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &device))
	assert.Equal(t, "3000123456", device.UniqueID)

	rec = do(h, http.MethodPost, "/api/devices", `{"name":"again","uniqueId":"3000123456"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodPost, "/api/positions/raw", `{"frame":"`+fixedFrame+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Position model.Position `json:"position"`
		Reply    string         `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "(P69,0,42)", resp.Reply)
	assert.Equal(t, device.ID, resp.Position.DeviceID)

	rec = do(h, http.MethodGet, "/api/positions/latest?deviceId="+device.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest model.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, resp.Position.ID, latest.ID)

	rec = do(h, http.MethodGet, "/api/positions/list?deviceId="+device.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(h, http.MethodGet, "/api/devices/get?id="+device.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &device))
	assert.Equal(t, model.DeviceStatusActive, device.Status)
	assert.NotEmpty(t, device.LastAddress)
}

func TestRouterErrors(t *testing.T) {
	h := newTestRouter()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/positions/raw", `{`, http.StatusBadRequest},
		{"bad hex", http.MethodPost, "/api/positions/raw", `{"frame":"zz"}`, http.StatusBadRequest},
		{"unknown marker", http.MethodPost, "/api/positions/raw", `{"frame":"4142"}`, http.StatusUnprocessableEntity},
		{"method", http.MethodPut, "/api/positions/raw", ``, http.StatusMethodNotAllowed},
		{"no device id", http.MethodGet, "/api/positions/latest", ``, http.StatusBadRequest},
		{"no positions", http.MethodGet, "/api/positions/latest?deviceId=x", ``, http.StatusNotFound},
		{"missing device", http.MethodGet, "/api/devices/get?id=x", ``, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/devices?id=x", ``, http.StatusNotFound},
		{"invalid device", http.MethodPost, "/api/devices", `{"name":""}`, http.StatusBadRequest},
		{"non-decimal id", http.MethodPost, "/api/devices", `{"name":"x","uniqueId":"86ab"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(h, tt.method, tt.target, tt.body).Code)
		})
	}
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	h := newTestRouter()
	device := `{"name":"lock 3","uniqueId":"3000123456","protocol":"jt701d"}`

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing", ""},
		{"not bearer", "Basic b3BlcmF0b3I6c2VjcmV0"},
		{"malformed", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", validClaims())},
		{"expired", "Bearer " + signToken(t, testSecret, expired)},
		{"unsigned", "Bearer " + none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, doAuth(h, http.MethodPost, "/api/devices", device, tt.authorization).Code)
			assert.Equal(t, http.StatusUnauthorized, doAuth(h, http.MethodDelete, "/api/devices?id=x", "", tt.authorization).Code)
			assert.Equal(t, http.StatusUnauthorized, doAuth(h, http.MethodPost, "/api/positions/raw", `{"frame":"`+fixedFrame+`"}`, tt.authorization).Code)
		})
	}

	rec := doAuth(h, http.MethodGet, "/api/devices", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doAuth(h, http.MethodPost, "/api/devices", device, "Bearer "+signToken(t, testSecret, validClaims()))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRouterWithoutSecretRejectsWrites(t *testing.T) {
	logger := zap.NewNop()
	devices := service.NewDeviceService(repository.NewInMemoryDeviceRepository(), nil, logger)
	decoder := dispatcher.New(devices, logger, protocol.Options{})
	positions := service.NewPositionService(repository.NewInMemoryPositionRepository(), devices, decoder, nil, logger)
	h := NewRouter(devices, positions, "", logger)

	rec := do(h, http.MethodPost, "/api/devices", `{"name":"lock 3","uniqueId":"3000123456"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/devices", "").Code)
}

func TestAuthenticatedSubjectReachesHandler(t *testing.T) {
	var subject string
	h := middleware.NewAuthMiddleware(testSecret).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = middleware.Subject(r.Context())
	}))

	rec := doAuth(h, http.MethodPost, "/", "", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator-1", subject)
}
