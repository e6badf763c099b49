package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/auth"
	"github.com/SergeiKhy/offer-tracker/internal/handler"
	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/middleware"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/SergeiKhy/offer-tracker/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router      *gin.Engine
	sessions    *auth.Sessions
	offers      *mocks.MockOfferRepository
	properties  *mocks.MockPropertyRepository
	visits      *mocks.MockVisitRepository
	conversions *mocks.MockConversionRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithLimits(t, middleware.RateLimiterConfig{
		RequestsPerSecond: 1000, // Высокий лимит для тестов
		BurstSize:         1000,
		CleanupInterval:   time.Minute,
	})
}

func setupTestEnvWithLimits(t *testing.T, limits middleware.RateLimiterConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	offers := mocks.NewMockOfferRepository()
	properties := mocks.NewMockPropertyRepository()
	visits := mocks.NewMockVisitRepository(offers)
	conversions := mocks.NewMockConversionRepository(offers, properties)
	cache := mocks.NewMockOfferCache()
	minter := idgen.NewUUIDMinter()

	offers.Put(&models.Offer{ID: "O1", OwnerID: "owner-1", Title: "Install app", Link: "https://advertiser.example/go"})
	properties.Put(&models.Property{ID: "P1", OwnerID: "owner-1", Name: "Site", Link: "https://site.example"})

	sessions, err := auth.NewSessions("test-secret", time.Hour)
	require.NoError(t, err)

	rateLimiter := middleware.NewRateLimiter(limits)
	t.Cleanup(rateLimiter.Stop)

	services := handler.Services{
		Clicks:     service.NewClickRouter(offers, cache, visits, minter, time.Minute, nil),
		Callbacks:  service.NewConversionRecorder(conversions, minter, nil, nil),
		Offers:     service.NewOfferService(offers, visits, cache, minter, nil),
		Properties: service.NewPropertyService(properties, minter),
		Dashboard:  service.NewDashboardService(conversions, visits),
	}

	router := handler.NewRouter(services, handler.RouterConfig{
		NotFoundURL: "/404",
		Sessions:    sessions,
		RateLimiter: rateLimiter,
		Postbacks:   fixedPostbackStats{BufferSize: 1000, BufferUsed: 4, WorkerCount: 3},
	}, nil)

	return &testEnv{
		router:      router,
		sessions:    sessions,
		offers:      offers,
		properties:  properties,
		visits:      visits,
		conversions: conversions,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, ownerID string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if ownerID != "" {
		token, err := env.sessions.Issue(ownerID)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// fixedPostbackStats отдаёт заданную статистику очереди постбэков
type fixedPostbackStats service.DispatcherStats

func (s fixedPostbackStats) Stats() service.DispatcherStats {
	return service.DispatcherStats(s)
}

func (env *testEnv) postRaw(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.5:40000"
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// TestRedirect_RecordsVisit клик пишет визит и редиректит на оффер
func TestRedirect_RecordsVisit(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/r/O1?referrer=abc-def", nil, "")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://advertiser.example/go", w.Header().Get("Location"))

	visits := env.visits.Visits()
	require.Len(t, visits, 1)
	assert.Equal(t, "abc", visits[0].UID)
	assert.Equal(t, "def", visits[0].PID)
}

// TestRedirect_MalformedReferrer токен без дефиса не ломает редирект
func TestRedirect_MalformedReferrer(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/r/O1?referrer=abc", nil, "")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	visits := env.visits.Visits()
	require.Len(t, visits, 1)
	assert.Equal(t, "abc", visits[0].UID)
	assert.Equal(t, models.UnknownReferrer, visits[0].PID)
}

// TestRedirect_UnknownOffer визит не пишется, редирект на страницу 404
func TestRedirect_UnknownOffer(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/r/missing?referrer=abc-def", nil, "")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/404", w.Header().Get("Location"))
	assert.Empty(t, env.visits.Visits())

	w = env.do(t, http.MethodGet, "/404", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRedirect_StoreFailure без записи визита редиректа нет
func TestRedirect_StoreFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.visits.Err = mocks.ErrMockStoreDown

	w := env.do(t, http.MethodGet, "/r/O1?referrer=abc-def", nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Click processing failed"}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Location"))
}

// TestCallback_Duplicate повторный колбэк отвечает 200 и не пишет вторую строку
func TestCallback_Duplicate(t *testing.T) {
	env := setupTestEnv(t)
	body := map[string]any{"propertyId": "P1", "offerId": "O1", "userId": "u9", "level": 1}

	w := env.do(t, http.MethodPost, "/api/callback", body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/callback", body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"duplicate":true}`, w.Body.String())

	assert.Len(t, env.conversions.Conversions(), 1)
}

// TestCallback_Concurrent параллельные одинаковые колбэки дают одну строку
func TestCallback_Concurrent(t *testing.T) {
	env := setupTestEnv(t)
	body := `{"propertyId":"P1","offerId":"O1","userId":"u9","level":2}`

	const n = 50
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.postRaw("/api/callback", body).Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Len(t, env.conversions.Conversions(), 1)
}

// TestCallback_InvalidPayload невалидное тело отклоняется до хранилища
func TestCallback_InvalidPayload(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing level", `{"propertyId":"P1","offerId":"O1","userId":"u9"}`},
		{"missing user", `{"propertyId":"P1","offerId":"O1","level":1}`},
		{"empty property", `{"propertyId":"","offerId":"O1","userId":"u9","level":1}`},
		{"string level", `{"propertyId":"P1","offerId":"O1","userId":"u9","level":"1"}`},
		{"fractional level", `{"propertyId":"P1","offerId":"O1","userId":"u9","level":1.5}`},
		{"not json", `level=1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postRaw("/api/callback", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Invalid callback payload"}`, w.Body.String())
		})
	}

	assert.Empty(t, env.conversions.Conversions())
}

// TestCallback_ZeroLevel level 0 валидное значение
func TestCallback_ZeroLevel(t *testing.T) {
	env := setupTestEnv(t)

	w := env.postRaw("/api/callback", `{"propertyId":"P1","offerId":"O1","userId":"u9","level":0}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.conversions.Conversions(), 1)
	assert.Equal(t, 0, env.conversions.Conversions()[0].Level)
}

// TestCallback_UnknownReference неизвестная площадка это ошибка сервера, не дубль
func TestCallback_UnknownReference(t *testing.T) {
	env := setupTestEnv(t)

	w := env.postRaw("/api/callback", `{"propertyId":"P404","offerId":"O1","userId":"u9","level":1}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Callback processing failed"}`, w.Body.String())
	assert.Empty(t, env.conversions.Conversions())
}

// TestCallback_StoreFailure ошибка хранилища отдаёт 500, повтор после восстановления проходит
func TestCallback_StoreFailure(t *testing.T) {
	env := setupTestEnv(t)
	body := `{"propertyId":"P1","offerId":"O1","userId":"u9","level":1}`

	env.conversions.Err = mocks.ErrMockStoreDown
	w := env.postRaw("/api/callback", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	env.conversions.Err = nil
	w = env.postRaw("/api/callback", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

// TestProtectedRoutes_RequireSession кабинет недоступен без сессии
func TestProtectedRoutes_RequireSession(t *testing.T) {
	env := setupTestEnv(t)

	paths := []string{"/api/offers", "/api/properties", "/api/dashboard/callbacks", "/api/dashboard/visitors"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func validOfferBody() map[string]any {
	return map[string]any{
		"title":        "Play game",
		"link":         "https://advertiser.example/game",
		"bannerImage":  "https://cdn.example/banner.png",
		"squareImage":  "https://cdn.example/square.png",
		"rewardsValue": "100 coins",
		"tierWiseSteps": map[string]any{
			"2": []map[string]any{{"title": "Reach level 10", "coins": 50}},
			"1": []map[string]any{{"title": "Install", "coins": 10}},
		},
		"maxPerTaskTierWise": map[string]any{"1": 10},
		"includedCountries":  []string{"us", "ca"},
	}
}

// TestOffers_CRUD создание, чтение, обновление и удаление оффера владельцем
func TestOffers_CRUD(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/offers", validOfferBody(), "owner-2")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Offer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	require.Len(t, created.Tiers, 2)
	assert.Equal(t, 1, created.Tiers[0].Level)
	assert.Equal(t, []string{"US", "CA"}, created.Targeting.Included)

	// Чужой владелец оффер не видит
	w = env.do(t, http.MethodGet, "/api/offers/"+created.ID, nil, "owner-1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/offers/"+created.ID, nil, "owner-2")
	assert.Equal(t, http.StatusOK, w.Code)

	update := validOfferBody()
	update["title"] = "Play game v2"
	w = env.do(t, http.MethodPut, "/api/offers/"+created.ID, update, "owner-2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Play game v2")

	w = env.do(t, http.MethodDelete, "/api/offers/"+created.ID, nil, "owner-2")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/offers/"+created.ID, nil, "owner-2")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestOffers_InvalidTargeting оба списка стран сразу запрещены
func TestOffers_InvalidTargeting(t *testing.T) {
	env := setupTestEnv(t)

	body := validOfferBody()
	body["excludedCountries"] = []string{"RU"}

	w := env.do(t, http.MethodPost, "/api/offers", body, "owner-2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestOffers_NonNumericTier ключ тира должен быть числом
func TestOffers_NonNumericTier(t *testing.T) {
	env := setupTestEnv(t)

	body := validOfferBody()
	body["tierWiseSteps"] = map[string]any{"first": []map[string]any{{"title": "Install", "coins": 10}}}

	w := env.do(t, http.MethodPost, "/api/offers", body, "owner-2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestOffers_Stats статистика считает визиты по реферерам
func TestOffers_Stats(t *testing.T) {
	env := setupTestEnv(t)

	env.do(t, http.MethodGet, "/r/O1?referrer=a-1", nil, "")
	env.do(t, http.MethodGet, "/r/O1?referrer=a-2", nil, "")
	env.do(t, http.MethodGet, "/r/O1?referrer=b-1", nil, "")
	env.do(t, http.MethodGet, "/r/O1", nil, "")

	w := env.do(t, http.MethodGet, "/api/offers/O1/stats", nil, "owner-1")
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.OfferStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(4), stats.TotalVisits)
	assert.Equal(t, int64(2), stats.UniqueVisits)

	w = env.do(t, http.MethodGet, "/api/offers/O1/stats/daily?days=abc", nil, "owner-1")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestPublicOffers публичный каталог без owner_id и без сессии
func TestPublicOffers(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/public/offers", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "owner_id")

	w = env.do(t, http.MethodGet, "/public/offers/O1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/public/offers/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestProperties_CRUD площадка с пустым постбэком хранит null
func TestProperties_CRUD(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/properties", map[string]any{
		"name": "Blog",
		"link": "https://blog.example",
	}, "owner-2")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Property
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Nil(t, created.PostbackURL)

	w = env.do(t, http.MethodPut, "/api/properties/"+created.ID, map[string]any{
		"name":        "Blog",
		"link":        "https://blog.example",
		"postbackUrl": "ftp://blog.example/pb",
	}, "owner-2")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/properties", nil, "owner-2")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/properties/"+created.ID, nil, "owner-1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/properties/"+created.ID, nil, "owner-2")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestEndToEnd_ClickThenCallback клик, колбэк, повтор колбэка и дашборд
func TestEndToEnd_ClickThenCallback(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/r/O1?referrer=u9-P1", nil, "")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	body := map[string]any{"propertyId": "P1", "offerId": "O1", "userId": "u9", "level": 1}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/callback", body, "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/callback", body, "").Code)

	w = env.do(t, http.MethodGet, "/api/dashboard/callbacks", nil, "owner-1")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.ConversionPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	assert.False(t, page.HasMore)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "u9", page.Data[0].UserID)

	w = env.do(t, http.MethodGet, "/api/dashboard/callbacks/stats", nil, "owner-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":1,"completed":0,"pending":1,"unique_offers":1}`, w.Body.String())

	// Другой владелец чужих конверсий не видит
	w = env.do(t, http.MethodGet, "/api/dashboard/callbacks", nil, "owner-2")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(0), page.Total)

	w = env.do(t, http.MethodGet, "/api/dashboard/visitors", nil, "owner-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u9")
}

// TestCallback_BurstFromOneIP_DefaultLimits лимит по IP не касается колбэков:
// все параллельные повторы с одного адреса получают 200
func TestCallback_BurstFromOneIP_DefaultLimits(t *testing.T) {
	env := setupTestEnvWithLimits(t, middleware.DefaultRateLimiterConfig)
	body := `{"propertyId":"P1","offerId":"O1","userId":"u9","level":1}`

	const n = 50
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.postRaw("/api/callback", body).Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Len(t, env.conversions.Conversions(), 1)
}

// TestRedirect_BurstFromOneIP_DefaultLimits клики с одного адреса не режутся лимитером
func TestRedirect_BurstFromOneIP_DefaultLimits(t *testing.T) {
	env := setupTestEnvWithLimits(t, middleware.DefaultRateLimiterConfig)

	for i := 0; i < 50; i++ {
		w := env.do(t, http.MethodGet, "/r/O1?referrer=u9-P1", nil, "")
		require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	}
	assert.Len(t, env.visits.Visits(), 50)
}

// TestPublicOffers_RateLimited каталог по-прежнему ограничен по IP
func TestPublicOffers_RateLimited(t *testing.T) {
	env := setupTestEnvWithLimits(t, middleware.DefaultRateLimiterConfig)

	limited := 0
	for i := 0; i < 30; i++ {
		w := env.do(t, http.MethodGet, "/public/offers", nil, "")
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)
}

// TestHealth_ReportsPostbackQueue health отдаёт заполненность очереди постбэков
func TestHealth_ReportsPostbackQueue(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"status":"ok","postbacks":{"buffer_size":1000,"buffer_used":4,"worker_count":3}}`,
		w.Body.String(),
	)
}
