package settlement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/auth"
	"github.com/margindesk/admin-api/pkg/middleware"
	"github.com/margindesk/admin-api/pkg/response"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "settlement-handler-secret"

// newInternalRouter wires the discrepancies route exactly as the server
// does: bearer auth plus a live super-admin check against the database.
func newInternalRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	adminDB := admin.NewDatabase(f.db)
	resolver := admin.NewResolver(adminDB, f.clock, 30*time.Second)
	gate := admin.NewGate(adminDB, resolver)

	handlers := NewGinHandlers(NewDatabase(f.db))
	internal := router.Group("/api/v1/internal")
	internal.Use(middleware.JWTAuth(testJWTSecret), middleware.RequireSuperAdmin(func(adminID string) (string, error) {
		adm, err := gate.Authenticate(adminID)
		if err != nil {
			return "", err
		}
		return adm.Role, nil
	}))
	{
		internal.GET("/settlements/discrepancies", handlers.ListDiscrepanciesHandler())
	}
	return router
}

func seedHandlerAdmin(t *testing.T, f *fixture, adminID, role string, active bool) *admin.Admin {
	t.Helper()
	adm := &admin.Admin{
		AdminID:  adminID,
		Username: adminID,
		Role:     role,
		IsActive: active,
	}
	require.NoError(t, admin.NewDatabase(f.db).CreateAdmin(adm))
	return adm
}

func listDiscrepancies(t *testing.T, router *gin.Engine, adm *admin.Admin) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	token, err := auth.NewService(testJWTSecret, time.Hour, nil).GenerateToken(adm)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/settlements/discrepancies", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &envelope)
	return w, envelope
}

func TestListDiscrepanciesSuperAdmin(t *testing.T) {
	f := newFixture(t)
	adm := seedHandlerAdmin(t, f, "ADM_super", admin.RoleSuperAdmin, true)
	require.NoError(t, NewDatabase(f.db).CreateDiscrepancy(&PayoutDiscrepancy{
		TradeID:    "trade-1",
		UserID:     "user-1",
		AmountOwed: decimal.NewFromInt(130),
		Reason:     "ledger unavailable",
	}))
	router := newInternalRouter(f)

	w, envelope := listDiscrepancies(t, router, adm)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
	data, ok := envelope.Data.([]interface{})
	require.True(t, ok, "unexpected data shape: %v", envelope.Data)
	require.Len(t, data, 1)
	entry := data[0].(map[string]interface{})
	assert.Equal(t, "trade-1", entry["trade_id"])
}

func TestListDiscrepanciesRejectsRegularAdmin(t *testing.T) {
	f := newFixture(t)
	adm := seedHandlerAdmin(t, f, "ADM_regular", admin.RoleAdmin, true)
	router := newInternalRouter(f)

	w, envelope := listDiscrepancies(t, router, adm)

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "Access denied: super admin required", envelope.Error.Message)
}

func TestListDiscrepanciesRejectsDeactivatedSuperAdmin(t *testing.T) {
	f := newFixture(t)
	adm := seedHandlerAdmin(t, f, "ADM_former", admin.RoleSuperAdmin, true)
	router := newInternalRouter(f)

	w, _ := listDiscrepancies(t, router, adm)
	require.Equal(t, http.StatusOK, w.Code)

	// Deactivation locks the admin out immediately even though the token's
	// role claim still says super_admin.
	require.NoError(t, f.db.Model(&admin.Admin{}).
		Where("admin_id = ?", adm.AdminID).
		Update("is_active", false).Error)

	w, envelope := listDiscrepancies(t, router, adm)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, envelope.Error)
}

func TestListDiscrepanciesRejectsDemotedSuperAdmin(t *testing.T) {
	f := newFixture(t)
	adm := seedHandlerAdmin(t, f, "ADM_demoted", admin.RoleSuperAdmin, true)
	router := newInternalRouter(f)

	require.NoError(t, f.db.Model(&admin.Admin{}).
		Where("admin_id = ?", adm.AdminID).
		Update("role", admin.RoleAdmin).Error)

	w, _ := listDiscrepancies(t, router, adm)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
