package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/zeromonos/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRules(t *testing.T) {
	cfg, err := config.Parse([]byte("booking:\n  min_lead_days: 2\n  exclusive_slots: false\n"))
	require.NoError(t, err)

	rules, err := BookingRules(cfg.Booking)
	require.NoError(t, err)
	assert.Equal(t, 3, rules.MinDescriptionLength)
	assert.Equal(t, 2, rules.MinLeadDays)
	assert.True(t, rules.RejectWeekends)
	assert.False(t, rules.ExclusiveSlots)
	assert.Equal(t, 5, rules.DailyLimit)
	assert.Equal(t, "Europe/Lisbon", rules.Location.String())
	assert.Equal(t, 5*time.Second, rules.SlotLockTTL)

	_, err = BookingRules(config.BookingConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestMunicipalityService_StaticFallback(t *testing.T) {
	svc := MunicipalityService(config.MunicipalitiesConfig{Fallback: []string{"Lisboa", "Porto"}, CacheTTLSeconds: 60}, nil)

	names, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Lisboa", "Porto"}, names)
}

func TestMunicipalityService_RemoteWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := MunicipalityService(config.MunicipalitiesConfig{
		SourceURL:             srv.URL,
		RequestTimeoutSeconds: 1,
		CacheTTLSeconds:       60,
		Fallback:              []string{"Faro"},
	}, nil)

	ok, err := svc.IsValid(context.Background(), "Faro")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetupLogger(t *testing.T) {
	previous := log.Logger
	defer func() { log.Logger = previous }()

	var buf bytes.Buffer
	logger, err := SetupLogger(config.LogConfig{Level: "warn"}, &buf, "booking-api")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	log.Ctx(context.Background()).Warn().Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"visible"`)
	assert.Contains(t, out, `"service":"booking-api"`)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	_, err = SetupLogger(config.LogConfig{Level: "loud"}, &buf, "booking-api")
	assert.Error(t, err)
}
