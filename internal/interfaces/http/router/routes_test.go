package router

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/infrastructure/auth"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
	"github.com/shopcore/stockengine/internal/interfaces/http/handler"
	"github.com/shopcore/stockengine/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const routesTestSecret = "routes-test-secret-at-least-32-bytes"

// stockEngine mounts the stock routes over handlers with no services behind
// them; only paths that stop before the service are exercised.
func stockEngine(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	middleware.SetupValidator()
	jwtSvc := auth.NewJWTService(config.JWTConfig{Secret: routesTestSecret})
	base := handler.NewBaseHandler(nil)
	h := Handlers{
		Items:        handler.NewItemHandler(base, nil, nil, nil),
		Reservations: handler.NewReservationHandler(base, nil),
		Adjustments:  handler.NewAdjustmentHandler(base, nil),
		OrderEvents:  handler.NewOrderEventHandler(base, nil),
		Reports:      handler.NewReportHandler(base, nil, zap.NewNop()),
		Admin:        handler.NewAdminHandler(base, nil, nil, zap.NewNop()),
	}
	guards := Guards{
		Authenticate: middleware.JWTAuth(jwtSvc, nil),
		Require:      func(p string) gin.HandlerFunc { return middleware.RequirePermission(p, nil) },
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	NewRouter(engine).Register(StockRoutes(h, guards)...).Setup()
	return engine, jwtSvc
}

func TestStockRoutes_Table(t *testing.T) {
	engine, _ := stockEngine(t)

	var got []string
	for _, r := range engine.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	sort.Strings(got)

	want := []string{
		"GET /api/v1/admin/jobs/:task",
		"GET /api/v1/items",
		"GET /api/v1/items/:id",
		"GET /api/v1/items/:id/availability",
		"GET /api/v1/items/:id/can-order",
		"GET /api/v1/items/:id/history",
		"GET /api/v1/orders/:ref/reservations",
		"GET /api/v1/reports/low-stock",
		"GET /api/v1/reports/stock-summary",
		"GET /api/v1/reservations/:id",
		"POST /api/v1/admin/expiry-sweeps",
		"POST /api/v1/admin/reservation-expiry",
		"POST /api/v1/items",
		"POST /api/v1/items/:id/adjustments",
		"POST /api/v1/items/:id/reservations",
		"POST /api/v1/orders/:ref/status-events",
		"POST /api/v1/reports/snapshots",
		"POST /api/v1/reservations/:id/confirm",
		"POST /api/v1/reservations/:id/release",
		"PUT /api/v1/items/:id/rules",
	}
	assert.Equal(t, want, got)
}

func TestStockRoutes_Guards(t *testing.T) {
	engine, jwtSvc := stockEngine(t)

	token := func(perms ...string) string {
		tok, err := jwtSvc.IssueAccessToken(auth.IssueInput{UserID: "u-1", Username: "ops", Permissions: perms})
		require.NoError(t, err)
		return tok
	}
	call := func(method, path, bearer string) int {
		req := httptest.NewRequest(method, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	protected := []struct {
		method, path, permission string
	}{
		{http.MethodPost, "/api/v1/items/not-a-uuid/adjustments", auth.PermissionStockAdjust},
		{http.MethodPost, "/api/v1/reports/snapshots", auth.PermissionStockReport},
		{http.MethodPost, "/api/v1/admin/expiry-sweeps", auth.PermissionStockAdmin},
		{http.MethodPost, "/api/v1/admin/reservation-expiry", auth.PermissionStockAdmin},
		{http.MethodGet, "/api/v1/admin/jobs/expiry-sweep", auth.PermissionStockAdmin},
	}
	for _, p := range protected {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, call(p.method, p.path, ""))
			assert.Equal(t, http.StatusForbidden, call(p.method, p.path, token("stock:nothing")))
		})
	}

	t.Run("granted adjustment reaches the handler", func(t *testing.T) {
		// the malformed id is rejected by the handler, past the guards
		assert.Equal(t, http.StatusBadRequest,
			call(http.MethodPost, "/api/v1/items/not-a-uuid/adjustments", token(auth.PermissionStockAdjust)))
	})

	t.Run("admin passes every guard", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound,
			call(http.MethodGet, "/api/v1/admin/jobs/expiry-sweep", token(auth.PermissionStockAdmin)))
	})

	t.Run("public routes need no token", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, call(http.MethodGet, "/api/v1/items/not-a-uuid", ""))
		assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/v1/reservations/not-a-uuid/release", ""))
	})
}
