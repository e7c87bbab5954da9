package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mhartsell/gatehouse/internal/handlers"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/services"
)

func TestGetSecurityOptions(t *testing.T) {
	service := &handlers.MockSettingsService{
		GetSecurityOptionsFunc: func(ctx context.Context) (models.SecurityOptions, error) {
			opts := models.DefaultSecurityOptions()
			opts.CustomLoginSlug = "side-door"
			return opts, nil
		},
	}

	handler := handlers.NewSettingsHandler(service)
	req := handlers.NewTestRequest(t, "GET", "/admin/api/settings/security", nil)

	w := httptest.NewRecorder()
	handler.GetSecurityOptions(w, req)

	var opts models.SecurityOptions
	handlers.AssertDataResponse(t, w, http.StatusOK, &opts)
	assert.Equal(t, "side-door", opts.CustomLoginSlug)
}

func TestUpdateSecurityOptions_PassesActorFromSession(t *testing.T) {
	var gotActor string
	var gotProposed models.SecurityOptions
	service := &handlers.MockSettingsService{
		UpdateSecurityOptionsFunc: func(ctx context.Context, actor string, proposed models.SecurityOptions) (models.SecurityOptions, error) {
			gotActor = actor
			gotProposed = proposed
			return proposed, nil
		},
	}

	handler := handlers.NewSettingsHandler(service)
	req := handlers.NewTestRequest(t, "PUT", "/admin/api/settings/security", handlers.SecurityOptionsRequest{
		ForceLoginEnabled: true,
		CustomLoginSlug:   "side-door",
		MaxLoginAttempts:  7,
		LockoutSeconds:    1200,
		SessionSeconds:    3600,
		SecurityHeaders:   true,
		ExemptRoles:       []string{"administrator"},
	})
	req = handlers.WithSessionContext(req, "admin-1", "root", "administrator")

	w := httptest.NewRecorder()
	handler.UpdateSecurityOptions(w, req)

	var stored models.SecurityOptions
	handlers.AssertDataResponse(t, w, http.StatusOK, &stored)
	assert.Equal(t, "admin-1", gotActor)
	assert.Equal(t, "side-door", gotProposed.CustomLoginSlug)
	assert.Equal(t, 7, gotProposed.MaxLoginAttempts)
}

func TestUpdateSecurityOptions_AnonymousActorIsUnknown(t *testing.T) {
	var gotActor string
	service := &handlers.MockSettingsService{
		UpdateSecurityOptionsFunc: func(ctx context.Context, actor string, proposed models.SecurityOptions) (models.SecurityOptions, error) {
			gotActor = actor
			return proposed, nil
		},
	}

	handler := handlers.NewSettingsHandler(service)
	req := handlers.NewTestRequest(t, "PUT", "/admin/api/settings/security", handlers.SecurityOptionsRequest{
		MaxLoginAttempts: 5,
		LockoutSeconds:   900,
		SessionSeconds:   3600,
	})

	w := httptest.NewRecorder()
	handler.UpdateSecurityOptions(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unknown", gotActor)
}

func TestUpdateSecurityOptions_InvalidBody(t *testing.T) {
	handler := handlers.NewSettingsHandler(&handlers.MockSettingsService{})
	req := httptest.NewRequest("PUT", "/admin/api/settings/security", nil)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	handler.UpdateSecurityOptions(w, req)

	handlers.AssertFailureResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestUpdateLoginOptions(t *testing.T) {
	var gotProposed models.LoginOptions
	service := &handlers.MockSettingsService{
		UpdateLoginOptionsFunc: func(ctx context.Context, actor string, proposed models.LoginOptions) (models.LoginOptions, error) {
			gotProposed = proposed
			return proposed, nil
		},
	}

	handler := handlers.NewSettingsHandler(service)
	req := handlers.NewTestRequest(t, "PUT", "/admin/api/settings/login", handlers.LoginOptionsRequest{
		RedirectToCompanion:  true,
		RoleRedirectsEnabled: true,
		ExemptAdmins:         true,
		CompanionPath:        "/companion",
	})

	w := httptest.NewRecorder()
	handler.UpdateLoginOptions(w, req)

	var stored models.LoginOptions
	handlers.AssertDataResponse(t, w, http.StatusOK, &stored)
	assert.True(t, gotProposed.RedirectToCompanion)
	assert.Equal(t, "/companion", gotProposed.CompanionPath)
}

func TestConflictScan_EmptyIsAnArray(t *testing.T) {
	handler := handlers.NewConflictHandler(&handlers.MockConflictService{}, &handlers.MockNoticeStore{}, &handlers.MockSecurityLogReader{})
	req := handlers.NewTestRequest(t, "POST", "/admin/api/conflicts/scan", nil)

	w := httptest.NewRecorder()
	handler.Scan(w, req)

	var records []models.ConflictRecord
	handlers.AssertDataResponse(t, w, http.StatusOK, &records)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestConflictScan_ReturnsFindings(t *testing.T) {
	service := &handlers.MockConflictService{
		ScanFunc: func(ctx context.Context) ([]models.ConflictRecord, error) {
			return []models.ConflictRecord{
				{Type: models.ConflictPlugin, Name: "custom-login-url", Severity: models.SeverityCritical, FixID: services.FixRegenerateSlug},
			}, nil
		},
	}

	handler := handlers.NewConflictHandler(service, &handlers.MockNoticeStore{}, &handlers.MockSecurityLogReader{})
	req := handlers.NewTestRequest(t, "POST", "/admin/api/conflicts/scan", nil)

	w := httptest.NewRecorder()
	handler.Scan(w, req)

	var records []models.ConflictRecord
	handlers.AssertDataResponse(t, w, http.StatusOK, &records)
	assert.Len(t, records, 1)
	assert.Equal(t, services.FixRegenerateSlug, records[0].FixID)
}

func TestApplyFix_UnknownFixIs404(t *testing.T) {
	handler := handlers.NewConflictHandler(&handlers.MockConflictService{}, &handlers.MockNoticeStore{}, &handlers.MockSecurityLogReader{})
	req := handlers.NewTestRequest(t, "POST", "/admin/api/conflicts/fix/nope", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"fixID": "nope"})

	w := httptest.NewRecorder()
	handler.ApplyFix(w, req)

	handlers.AssertFailureResponse(t, w, http.StatusNotFound, "not_found")
}

func TestApplyFix_Success(t *testing.T) {
	var gotFixID, gotActor string
	service := &handlers.MockConflictService{
		ResolveFunc: func(ctx context.Context, fixID, actor string) error {
			gotFixID = fixID
			gotActor = actor
			return nil
		},
	}

	handler := handlers.NewConflictHandler(service, &handlers.MockNoticeStore{}, &handlers.MockSecurityLogReader{})
	req := handlers.NewTestRequest(t, "POST", "/admin/api/conflicts/fix/"+services.FixRegenerateSlug, nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"fixID": services.FixRegenerateSlug})
	req = handlers.WithSessionContext(req, "admin-1", "root", "administrator")

	w := httptest.NewRecorder()
	handler.ApplyFix(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.FixRegenerateSlug, gotFixID)
	assert.Equal(t, "admin-1", gotActor)
}

func TestDismissNotice_NotFound(t *testing.T) {
	handler := handlers.NewConflictHandler(&handlers.MockConflictService{}, &handlers.MockNoticeStore{}, &handlers.MockSecurityLogReader{})
	req := handlers.NewTestRequest(t, "DELETE", "/admin/api/notices/missing", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"noticeID": "missing"})

	w := httptest.NewRecorder()
	handler.DismissNotice(w, req)

	handlers.AssertFailureResponse(t, w, http.StatusNotFound, "not_found")
}

func TestSecurityLog_LimitClamping(t *testing.T) {
	var gotLimit int
	reader := &handlers.MockSecurityLogReader{
		ListRecentFunc: func(ctx context.Context, limit int) ([]models.SecurityLogEntry, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	handler := handlers.NewConflictHandler(&handlers.MockConflictService{}, &handlers.MockNoticeStore{}, reader)

	cases := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"?limit=25", 25},
		{"?limit=0", 100},
		{"?limit=9999", 100},
		{"?limit=abc", 100},
	}
	for _, tc := range cases {
		req := handlers.NewTestRequest(t, "GET", "/admin/api/security-log"+tc.query, nil)
		w := httptest.NewRecorder()
		handler.SecurityLog(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tc.want, gotLimit, "query %q", tc.query)
	}
}

func TestDashboardEnter_AnonymousIs401(t *testing.T) {
	handler := handlers.NewDashboardHandler(&handlers.MockRedirectDecider{}, &handlers.MockUserLookup{})
	req := handlers.NewTestRequest(t, "GET", "/admin", nil)

	w := httptest.NewRecorder()
	handler.Enter(w, req)

	handlers.AssertFailureResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestDashboardEnter_NativeDestinationServesPage(t *testing.T) {
	handler := handlers.NewDashboardHandler(&handlers.MockRedirectDecider{}, &handlers.MockUserLookup{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Username: "root", Roles: []string{"administrator"}}, nil
		},
	})
	req := handlers.NewTestRequest(t, "GET", services.NativeDashboardPath, nil)
	req = handlers.WithSessionContext(req, "admin-1", "root", "administrator")

	w := httptest.NewRecorder()
	handler.Enter(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardEnter_PolicyRedirects(t *testing.T) {
	decider := &handlers.MockRedirectDecider{
		DecideFunc: func(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error) {
			return services.AccountPath, nil
		},
	}
	handler := handlers.NewDashboardHandler(decider, &handlers.MockUserLookup{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Username: "carol", Roles: []string{"customer"}}, nil
		},
	})
	req := handlers.NewTestRequest(t, "GET", services.NativeDashboardPath, nil)
	req = handlers.WithSessionContext(req, "user-7", "carol", "customer")

	w := httptest.NewRecorder()
	handler.Enter(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, services.AccountPath, w.Header().Get("Location"))
}

func TestDashboardEnter_StaleSessionFallsBackToClaims(t *testing.T) {
	var seenRoles []string
	decider := &handlers.MockRedirectDecider{
		DecideFunc: func(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error) {
			seenRoles = user.Roles
			return services.NativeDashboardPath, nil
		},
	}
	handler := handlers.NewDashboardHandler(decider, &handlers.MockUserLookup{})
	req := handlers.NewTestRequest(t, "GET", services.NativeDashboardPath, nil)
	req = handlers.WithSessionContext(req, "gone-1", "ghost", "editor")

	w := httptest.NewRecorder()
	handler.Enter(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"editor"}, seenRoles)
}

func TestDashboardEnter_NativeOverridePassedThrough(t *testing.T) {
	var gotOverride bool
	decider := &handlers.MockRedirectDecider{
		DecideFunc: func(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error) {
			gotOverride = nativeOverride
			return services.NativeDashboardPath, nil
		},
	}
	handler := handlers.NewDashboardHandler(decider, &handlers.MockUserLookup{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Roles: []string{"customer"}}, nil
		},
	})
	req := handlers.NewTestRequest(t, "GET", services.NativeDashboardPath+"?native=1", nil)
	req = handlers.WithSessionContext(req, "user-7", "carol", "customer")

	w := httptest.NewRecorder()
	handler.Enter(w, req)

	assert.True(t, gotOverride)
}
