package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/services"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// NewTestRequest creates an HTTP request with a JSON body for testing.
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext adds session claims to the request context for
// testing authenticated endpoints.
func WithSessionContext(req *http.Request, userID, username string, roles ...string) *http.Request {
	claims := &models.SessionClaims{
		UserID:   userID,
		Username: username,
		Roles:    roles,
	}
	return req.WithContext(auth.WithSession(req.Context(), claims))
}

// WithChiRouteContext adds chi URL parameters to the request context.
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertDataResponse checks status and decodes the envelope's data
// payload into target.
func AssertDataResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	assert.NoError(t, err, "failed to decode response envelope")
	assert.True(t, env.Success, "expected a success envelope")
	if target != nil {
		assert.NoError(t, json.Unmarshal(env.Data, target), "failed to decode data payload")
	}
}

// AssertFailureResponse checks that the response is a failure envelope
// with the expected status and code.
func AssertFailureResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")

	var env struct {
		Success bool                `json:"success"`
		Data    pkghttp.FailureData `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	assert.NoError(t, err, "failed to decode failure envelope")
	assert.False(t, env.Success, "expected a failure envelope")
	assert.Equal(t, expectedCode, env.Data.Code, "failure code mismatch")
	assert.NotEmpty(t, env.Data.Message, "failure message should not be empty")
}

// MockLoginService implements LoginService for testing.
type MockLoginService struct {
	PrepareAttemptFunc func(ctx context.Context, params services.AttemptParams) (*services.LoginAttempt, error)
	LoginFunc          func(ctx context.Context, attempt *services.LoginAttempt) (*services.LoginResult, *services.Rejection, error)
}

func (m *MockLoginService) PrepareAttempt(ctx context.Context, params services.AttemptParams) (*services.LoginAttempt, error) {
	if m.PrepareAttemptFunc == nil {
		return &services.LoginAttempt{
			IP:       params.IP,
			Username: params.Username,
			Password: params.Password,
			Remember: params.Remember,
		}, nil
	}
	return m.PrepareAttemptFunc(ctx, params)
}

func (m *MockLoginService) Login(ctx context.Context, attempt *services.LoginAttempt) (*services.LoginResult, *services.Rejection, error) {
	if m.LoginFunc == nil {
		return nil, nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, attempt)
}

// MockSettingsService implements SettingsService for testing.
type MockSettingsService struct {
	GetSecurityOptionsFunc    func(ctx context.Context) (models.SecurityOptions, error)
	GetLoginOptionsFunc       func(ctx context.Context) (models.LoginOptions, error)
	UpdateSecurityOptionsFunc func(ctx context.Context, actor string, proposed models.SecurityOptions) (models.SecurityOptions, error)
	UpdateLoginOptionsFunc    func(ctx context.Context, actor string, proposed models.LoginOptions) (models.LoginOptions, error)
}

func (m *MockSettingsService) GetSecurityOptions(ctx context.Context) (models.SecurityOptions, error) {
	if m.GetSecurityOptionsFunc == nil {
		return models.DefaultSecurityOptions(), nil
	}
	return m.GetSecurityOptionsFunc(ctx)
}

func (m *MockSettingsService) GetLoginOptions(ctx context.Context) (models.LoginOptions, error) {
	if m.GetLoginOptionsFunc == nil {
		return models.DefaultLoginOptions(), nil
	}
	return m.GetLoginOptionsFunc(ctx)
}

func (m *MockSettingsService) UpdateSecurityOptions(ctx context.Context, actor string, proposed models.SecurityOptions) (models.SecurityOptions, error) {
	if m.UpdateSecurityOptionsFunc == nil {
		return proposed, nil
	}
	return m.UpdateSecurityOptionsFunc(ctx, actor, proposed)
}

func (m *MockSettingsService) UpdateLoginOptions(ctx context.Context, actor string, proposed models.LoginOptions) (models.LoginOptions, error) {
	if m.UpdateLoginOptionsFunc == nil {
		return proposed, nil
	}
	return m.UpdateLoginOptionsFunc(ctx, actor, proposed)
}

// MockConflictService implements ConflictService for testing.
type MockConflictService struct {
	ScanFunc    func(ctx context.Context) ([]models.ConflictRecord, error)
	ResolveFunc func(ctx context.Context, fixID, actor string) error
}

func (m *MockConflictService) Scan(ctx context.Context) ([]models.ConflictRecord, error) {
	if m.ScanFunc == nil {
		return nil, nil
	}
	return m.ScanFunc(ctx)
}

func (m *MockConflictService) Resolve(ctx context.Context, fixID, actor string) error {
	if m.ResolveFunc == nil {
		return models.ErrUnknownFix
	}
	return m.ResolveFunc(ctx, fixID, actor)
}

// MockNoticeStore implements NoticeStore for testing.
type MockNoticeStore struct {
	ListActiveFunc     func(ctx context.Context) ([]models.Notice, error)
	DismissFunc        func(ctx context.Context, id string) error
	ListFixActionsFunc func(ctx context.Context, limit int) ([]models.FixAction, error)
}

func (m *MockNoticeStore) ListActive(ctx context.Context) ([]models.Notice, error) {
	if m.ListActiveFunc == nil {
		return nil, nil
	}
	return m.ListActiveFunc(ctx)
}

func (m *MockNoticeStore) Dismiss(ctx context.Context, id string) error {
	if m.DismissFunc == nil {
		return models.ErrNotFound
	}
	return m.DismissFunc(ctx, id)
}

func (m *MockNoticeStore) ListFixActions(ctx context.Context, limit int) ([]models.FixAction, error) {
	if m.ListFixActionsFunc == nil {
		return nil, nil
	}
	return m.ListFixActionsFunc(ctx, limit)
}

// MockSecurityLogReader implements SecurityLogReader for testing.
type MockSecurityLogReader struct {
	ListRecentFunc func(ctx context.Context, limit int) ([]models.SecurityLogEntry, error)
}

func (m *MockSecurityLogReader) ListRecent(ctx context.Context, limit int) ([]models.SecurityLogEntry, error) {
	if m.ListRecentFunc == nil {
		return nil, nil
	}
	return m.ListRecentFunc(ctx, limit)
}

// MockUserLookup implements UserLookup for testing.
type MockUserLookup struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *MockUserLookup) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

// MockRedirectDecider implements RedirectDecider for testing.
type MockRedirectDecider struct {
	DecideFunc func(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error)
}

func (m *MockRedirectDecider) Decide(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error) {
	if m.DecideFunc == nil {
		return services.NativeDashboardPath, nil
	}
	return m.DecideFunc(ctx, user, requested, nativeOverride)
}
