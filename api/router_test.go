package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/zeromonos/config"
	"github.com/Domenick1991/zeromonos/internal/receipt"
	"github.com/Domenick1991/zeromonos/internal/repository"
	"github.com/Domenick1991/zeromonos/internal/service/booking"
	"github.com/Domenick1991/zeromonos/internal/service/municipality"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routerNow = time.Date(2098, 12, 31, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, cfg config.HTTPConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	municipalities := municipality.NewMunicipalityService(
		municipality.NewStaticDirectory([]string{"Lisboa", "Porto", "Águeda"}),
		time.Hour,
	)
	service := booking.NewBookingService(
		repository.NewMemoryBookingRepository(),
		municipalities,
		booking.WithClock(func() time.Time { return routerNow }),
	)
	return NewRouter(cfg, zerolog.Nop(), NewBookingHandler(service, receipt.NewGenerator("")), NewMunicipalityHandler(municipalities))
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func submit(t *testing.T, router http.Handler, municipality, description, date, slot string) bookingResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"municipality":  municipality,
		"description":   description,
		"requestedDate": date,
		"timeSlot":      slot,
	})
	w := do(router, http.MethodPost, "/api/bookings", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRouter_PortoScenario(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})

	created := submit(t, router, "Porto", "Pothole", "2099-01-01", "09:00-11:00")
	require.NotEmpty(t, created.Token)
	assert.Equal(t, "RECEBIDO", created.Status)

	w := do(router, http.MethodGet, "/api/bookings/"+created.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var found bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	assert.Equal(t, created, found)
	assert.Equal(t, "Porto", found.Municipality)
	assert.Equal(t, "Pothole", found.Description)
	assert.Equal(t, "2099-01-01", found.RequestedDate)
	assert.Equal(t, "09:00-11:00", found.TimeSlot)

	w = do(router, http.MethodPut, "/api/bookings/"+created.Token+"?status=EM_PROG", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"EM_PROG"`)

	w = do(router, http.MethodPut, "/api/bookings/"+created.Token+"?status=RECEBIDO", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid transition from EM_PROG to RECEBIDO", w.Body.String())

	w = do(router, http.MethodGet, "/api/bookings/"+created.Token+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []statusChangeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "RECEBIDO", history[0].Status)
	assert.Equal(t, "EM_PROG", history[1].Status)
}

func TestRouter_UnknownToken(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})

	for _, target := range []string{
		"/api/bookings/unknown-token",
		"/api/bookings/unknown-token/history",
		"/api/bookings/unknown-token/receipt",
		"/api/bookings/unknown-token/qr",
	} {
		w := do(router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.JSONEq(t, `{"error":"booking not found"}`, w.Body.String(), target)
	}

	w := do(router, http.MethodDelete, "/api/bookings/unknown-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodPut, "/api/bookings/unknown-token?status=EM_PROG", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "booking not found", w.Body.String())
}

func TestRouter_CancelTwice(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})
	created := submit(t, router, "Lisboa", "Old mattress", "2099-01-02", "11:00-13:00")

	w := do(router, http.MethodDelete, "/api/bookings/"+created.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"CANCELADO"`)

	w = do(router, http.MethodGet, "/api/bookings/"+created.Token, "")
	assert.Contains(t, w.Body.String(), `"status":"CANCELADO"`)

	w = do(router, http.MethodDelete, "/api/bookings/"+created.Token, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already CANCELADO")
}

func TestRouter_SubmitValidation(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "unknown municipality", body: `{"municipality":"Atlantis","description":"Sofa","requestedDate":"2099-01-01","timeSlot":"09:00-11:00"}`, wantField: "municipality"},
		{name: "bad slot", body: `{"municipality":"Porto","description":"Sofa","requestedDate":"2099-01-01","timeSlot":"08:00-09:00"}`, wantField: "timeSlot"},
		{name: "past date", body: `{"municipality":"Porto","description":"Sofa","requestedDate":"2000-01-01","timeSlot":"09:00-11:00"}`, wantField: "requestedDate"},
		{name: "bad date", body: `{"municipality":"Porto","description":"Sofa","requestedDate":"01/01/2099","timeSlot":"09:00-11:00"}`, wantField: "requestedDate"},
		{name: "blank description", body: `{"municipality":"Porto","description":"   ","requestedDate":"2099-01-01","timeSlot":"09:00-11:00"}`, wantField: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/bookings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantField, resp.Field)
		})
	}

	w := do(router, http.MethodGet, "/api/bookings", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRouter_ListByMunicipality(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})

	first := submit(t, router, "Lisboa", "Fridge", "2099-01-01", "09:00-11:00")
	submit(t, router, "Porto", "Sofa", "2099-01-01", "09:00-11:00")
	second := submit(t, router, "Lisboa", "Wardrobe", "2099-01-02", "13:00-15:00")

	w := do(router, http.MethodGet, "/api/bookings?municipality=Lisboa", "")
	require.Equal(t, http.StatusOK, w.Code)

	var listed []bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, []bookingResponse{first, second}, listed)

	w = do(router, http.MethodGet, "/api/bookings", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed, 3)
}

func TestRouter_ReferenceData(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{SwaggerEnabled: true})

	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK"}`, w.Body.String())

	w = do(router, http.MethodGet, "/api/municipios", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["Lisboa","Porto","Águeda"]`, w.Body.String())

	w = do(router, http.MethodGet, "/api/timeslots", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "17:00-19:00")

	w = do(router, http.MethodGet, "/docs/openapi.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, json.Valid(w.Body.Bytes()))

	w = do(router, http.MethodGet, "/swagger/index.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SwaggerDisabled(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})

	w := do(router, http.MethodGet, "/docs/openapi.json", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ReceiptDownloads(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{})
	created := submit(t, router, "Águeda", "Washing machine", "2099-01-01", "15:00-17:00")

	w := do(router, http.MethodGet, "/api/bookings/"+created.Token+"/receipt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.Token)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = do(router, http.MethodGet, "/api/bookings/"+created.Token+"/qr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestRouter_RateLimitsOnlyMutatingRoutes(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	submit(t, router, "Porto", "Sofa", "2099-01-01", "09:00-11:00")

	w := do(router, http.MethodPost, "/api/bookings", `{"municipality":"Porto","description":"Sofa","requestedDate":"2099-01-01","timeSlot":"11:00-13:00"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	for i := 0; i < 3; i++ {
		w = do(router, http.MethodGet, "/api/bookings", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	router := newTestRouter(t, config.HTTPConfig{AllowOrigins: []string{"http://portal.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/bookings", nil)
	req.Header.Set("Origin", "http://portal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://portal.example", w.Header().Get("Access-Control-Allow-Origin"))
}
