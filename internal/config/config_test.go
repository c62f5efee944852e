package config_test

import (
	"testing"

	"github.com/kdawg1232/jitter/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.HalfLifeBaseHours, convey.ShouldEqual, 5.0)
			convey.So(cfg.HalfLifeMinHours, convey.ShouldEqual, 1.5)
			convey.So(cfg.HalfLifeMaxHours, convey.ShouldEqual, 8.0)
			convey.So(cfg.AbsorptionAlpha, convey.ShouldEqual, 2.0)
			convey.So(cfg.AbsorptionBeta, convey.ShouldEqual, 3.0)
			convey.So(cfg.AbsorptionDelayMinutes, convey.ShouldEqual, 30)
			convey.So(cfg.PeakWindowHours, convey.ShouldEqual, 6.0)
			convey.So(cfg.PeakStepMinutes, convey.ShouldEqual, 5)
			convey.So(cfg.MaxDailyCaffeineMg, convey.ShouldEqual, 400)
			convey.So(cfg.BedtimeCeilingMg, convey.ShouldEqual, 50)
			convey.So(cfg.FocusFloorMg, convey.ShouldEqual, 30)
		})

		convey.Convey("Then the focus band should be ordered", func() {
			convey.So(cfg.FocusBandLowMgPerKg, convey.ShouldBeLessThan, cfg.FocusBandHighMgPerKg)
		})
	})
}
