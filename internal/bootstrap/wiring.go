package bootstrap

import (
	"github.com/Domenick1991/zeromonos/config"
	"github.com/Domenick1991/zeromonos/internal/service/booking"
	"github.com/Domenick1991/zeromonos/internal/service/municipality"
)

func BookingRules(cfg config.BookingConfig) (booking.Rules, error) {
	loc, err := cfg.Location()
	if err != nil {
		return booking.Rules{}, err
	}

	rules := booking.Rules{
		MinDescriptionLength: cfg.MinDescriptionLength,
		MinLeadDays:          cfg.MinLeadDays,
		DailyLimit:           cfg.DailyLimit,
		Location:             loc,
		SlotLockTTL:          cfg.SlotLockTTL(),
	}
	if cfg.RejectWeekends != nil {
		rules.RejectWeekends = *cfg.RejectWeekends
	}
	if cfg.ExclusiveSlots != nil {
		rules.ExclusiveSlots = *cfg.ExclusiveSlots
	}
	return rules, nil
}

// MunicipalityService picks the remote directory when a source URL is set and
// the static fallback list otherwise. cache may be nil.
func MunicipalityService(cfg config.MunicipalitiesConfig, cache municipality.Cache) *municipality.MunicipalityService {
	var directory municipality.Directory
	if cfg.SourceURL != "" {
		directory = municipality.NewGeoAPIDirectory(cfg.SourceURL, cfg.RequestTimeout())
	} else {
		directory = municipality.NewStaticDirectory(cfg.Fallback)
	}

	opts := []municipality.Option{municipality.WithFallback(cfg.Fallback)}
	if cache != nil {
		opts = append(opts, municipality.WithCache(cache))
	}
	return municipality.NewMunicipalityService(directory, cfg.CacheTTL(), opts...)
}
