package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"activity-reward-system/middleware"
	"activity-reward-system/models"
	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testToken  = "gateway-secret"
	testAdmin  = "admin-secret"
	testPlayer = "tg:1001"
)

var dbSeq int64

func newTestApp(t *testing.T, adminSecret string) (*fiber.App, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:handlersdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	rules := services.DefaultRules()
	app := fiber.New()
	app.Use(middleware.RequestMetrics())
	app.Use(middleware.GatewayAuthMiddleware(testToken))
	SetupRulesRoutes(app, rules)
	SetupLeaderboardRoutes(app, services.NewLeaderboardService(db, time.UTC), services.NewUserService(db))
	SetupActivityRoutes(app, services.NewActivityService(db, rules, time.UTC), services.NewUserService(db))
	SetupNonceRoutes(app, services.NewNonceStore(db))
	SetupAdminRoutes(app, services.NewAdminService(db), adminSecret)
	return app, db
}

type call struct {
	method, path, body string
	address            string
	headers            map[string]string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.address != "" {
		req.Header.Set(middleware.AddressHeader, c.address)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestGatewayTokenRequired(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/rules", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	status, body := do(t, app, call{method: http.MethodGet, path: "/rules"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "rules")
}

func TestSubmitRequiresAddress(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, _ := do(t, app, call{method: http.MethodPost, path: "/activity/submit", body: `{"game":"runner","durationMs":60000}`})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, call{method: http.MethodGet, path: "/leaderboard"})
	assert.Equal(t, fiber.StatusOK, status, "public routes need no identity")
}

func TestSubmitAndProfile(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, body := do(t, app, call{
		method:  http.MethodPost,
		path:    "/activity/submit",
		body:    `{"game":"runner","distance":2,"durationMs":60000,"bestDurationSeconds":60}`,
		address: testPlayer,
		headers: map[string]string{"Idempotency-Key": "run-1"},
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, 220.0, body["earnedAmount"])
	assert.Equal(t, "ok", body["reason"])
	assert.Equal(t, false, body["replayed"])

	status, body = do(t, app, call{
		method:  http.MethodPost,
		path:    "/activity/submit",
		body:    `{"game":"runner","distance":2,"durationMs":60000}`,
		address: testPlayer,
		headers: map[string]string{"Idempotency-Key": "run-1"},
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["replayed"])
	assert.Equal(t, 220.0, body["earnedAmount"], "replay reports the original credit")

	status, body = do(t, app, call{method: http.MethodGet, path: "/me", address: testPlayer})
	require.Equal(t, fiber.StatusOK, status)
	totals := body["lifetimeTotals"].(map[string]interface{})
	assert.Equal(t, 220.0, totals["rewardTotal"])
}

func TestSubmitValidation(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, body := do(t, app, call{method: http.MethodPost, path: "/activity/submit", body: `{"game":"runner"}`, address: testPlayer})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["code"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/activity/submit", body: `{"game":`, address: testPlayer})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestLegacyAdd(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, body := do(t, app, call{method: http.MethodPost, path: "/activity/add", body: `{"addReward":25,"addDistance":1.5}`, address: testPlayer})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, 25.0, body["earnedAmount"])
	assert.Equal(t, false, body["receiptWritten"])
}

func TestLeaderboardQueryValidation(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, body := do(t, app, call{method: http.MethodGet, path: "/leaderboard?window=fortnight"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["code"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/leaderboard?game=chess"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = do(t, app, call{method: http.MethodGet, path: "/leaderboard?window=weekly&metric=calories&game=tetris"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "week", body["window"])
	assert.Equal(t, "reward", body["metric"])
	assert.Equal(t, "blocks", body["game"])
	assert.Equal(t, "ledger", body["source"])
}

func TestDisplayNameConflict(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, _ := do(t, app, call{method: http.MethodPut, path: "/me/name", body: `{"displayName":"Night Owl"}`, address: testPlayer})
	require.Equal(t, fiber.StatusOK, status)

	status, body := do(t, app, call{method: http.MethodPut, path: "/me/name", body: `{"displayName":"night-owl"}`, address: "tg:2002"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "name_taken", body["code"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/users/" + testPlayer})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Night Owl", body["displayName"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/users/tg:404"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestNonceRoutes(t *testing.T) {
	app, _ := newTestApp(t, testAdmin)

	status, body := do(t, app, call{method: http.MethodPost, path: "/internal/nonces", body: `{"address":"wallet1","message":"Login {nonce}"}`})
	require.Equal(t, fiber.StatusCreated, status, body)
	nonce := body["nonce"].(string)
	assert.Equal(t, "Login "+nonce, body["message"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/internal/nonces/consume", body: `{"address":"wallet1"}`})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, nonce, body["nonce"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/internal/nonces/consume", body: `{"address":"wallet1"}`})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/internal/nonces", body: `{"address":"wallet1","ttlSeconds":99999}`})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAdminReset(t *testing.T) {
	app, db := newTestApp(t, testAdmin)

	status, _ := do(t, app, call{method: http.MethodPost, path: "/activity/submit", body: `{"game":"runner","distance":2,"durationMs":60000}`, address: testPlayer})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/admin/reset"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := do(t, app, call{method: http.MethodPost, path: "/admin/reset", headers: map[string]string{"X-Admin-Secret": testAdmin}})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1.0, body["sessionsDeleted"])

	var n int64
	require.NoError(t, db.Model(&models.GameSession{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAdminRoutesDisabledWithoutSecret(t *testing.T) {
	app, _ := newTestApp(t, "")

	status, _ := do(t, app, call{method: http.MethodPost, path: "/admin/reset", headers: map[string]string{"X-Admin-Secret": ""}})
	assert.Equal(t, fiber.StatusNotFound, status)
}
