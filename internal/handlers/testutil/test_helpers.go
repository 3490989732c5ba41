package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/api"
	"github.com/charlesng35/inspectd/internal/app"
	iauth "github.com/charlesng35/inspectd/internal/auth"
	sharedtestutil "github.com/charlesng35/inspectd/internal/database/testutil"
	"github.com/charlesng35/inspectd/internal/middleware"
	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/monitoring"
	"github.com/charlesng35/inspectd/internal/monitoring/checks"
	"github.com/charlesng35/inspectd/internal/push"
	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/internal/storage/storagetest"
	"github.com/charlesng35/inspectd/pkg/crypto"
	"github.com/charlesng35/inspectd/pkg/response"
)

// DefaultPassword is the password of every user created through CreateUser.
const DefaultPassword = "correct-horse-battery"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Store  *storagetest.MemoryStore
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: "1h",
	})
	require.NoError(t, err)

	store := storagetest.NewMemoryStore()
	dispatcher, err := services.NewNotificationDispatcher(db, push.NewLogGateway(zap.NewNop()))
	require.NoError(t, err)

	users, err := services.NewUserService(db, dispatcher)
	require.NoError(t, err)
	jobs, err := services.NewJobService(db, dispatcher)
	require.NoError(t, err)
	reports, err := services.NewReportService(db, store, dispatcher)
	require.NoError(t, err)
	devices, err := services.NewPushTokenService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true

	router, err := api.NewRouter(cfg, jwtSvc, api.Services{
		Users:         users,
		Jobs:          jobs,
		Reports:       reports,
		Devices:       devices,
		Notifications: notifications,
	}, monitoring.NewHealthManager(checks.Database(db, 0)), middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Store:  store,
	}
}

// CreateUser inserts an active, approved user with DefaultPassword.
func (e *Env) CreateUser(role string) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(DefaultPassword)
	require.NoError(e.T, err)

	name := role + "-" + uuid.NewString()[:8]
	user := &models.User{
		Name:       name,
		Email:      name + "@example.com",
		Password:   hashed,
		Role:       role,
		IsActive:   true,
		IsApproved: true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// TokenFor issues an access token for user without going through login.
func (e *Env) TokenFor(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(user.ID, user.Role)
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// UploadFile is one part of a multipart report submission.
type UploadFile struct {
	Label       string
	FileName    string
	ContentType string
	Content     []byte
}

// Upload posts a multipart form with one images part and one labels value per file.
func (e *Env) Upload(path string, files []UploadFile, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="images"; filename="`+file.FileName+`"`)
		header.Set("Content-Type", file.ContentType)
		part, err := writer.CreatePart(header)
		require.NoError(e.T, err)
		_, err = part.Write(file.Content)
		require.NoError(e.T, err)
		require.NoError(e.T, writer.WriteField("labels", file.Label))
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
