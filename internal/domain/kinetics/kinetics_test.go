package kinetics_test

import (
	"testing"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/kinetics"
	model "github.com/kdawg1232/jitter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestContributionBolus(t *testing.T) {
	Convey("Given an instantaneous 200mg dose and a 5h half-life", t, func() {
		k := kinetics.New()
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		dose := model.DoseEvent{ID: "d1", CaffeineMg: 200, ConsumedAt: start}

		Convey("Then nothing is present before the dose", func() {
			So(k.Contribution(dose, 5, start.Add(-time.Second)), ShouldEqual, 0)
			So(k.Contribution(dose, 5, start.Add(-3*time.Hour)), ShouldEqual, 0)
		})

		Convey("Then the full dose is present at the consumption instant", func() {
			So(k.Contribution(dose, 5, start), ShouldAlmostEqual, 200, 1e-9)
		})

		Convey("Then exactly half remains after one half-life", func() {
			So(k.Contribution(dose, 5, start.Add(5*time.Hour)), ShouldAlmostEqual, 100, 1e-6)
		})

		Convey("Then a quarter remains after two half-lives", func() {
			So(k.Contribution(dose, 5, start.Add(10*time.Hour)), ShouldAlmostEqual, 50, 1e-6)
		})

		Convey("Then three hours in, roughly 132mg remains", func() {
			// 200 * 2^(-3/5)
			So(k.Contribution(dose, 5, start.Add(3*time.Hour)), ShouldAlmostEqual, 131.95, 0.05)
		})

		Convey("Then the contribution eventually approaches zero", func() {
			So(k.Contribution(dose, 5, start.Add(72*time.Hour)), ShouldBeLessThan, 0.01)
		})
	})

	Convey("Given degenerate inputs", t, func() {
		k := kinetics.New()
		start := time.Now()

		Convey("Then a zero-mg dose contributes nothing", func() {
			d := model.DoseEvent{CaffeineMg: 0, ConsumedAt: start}
			So(k.Contribution(d, 5, start.Add(time.Hour)), ShouldEqual, 0)
		})

		Convey("Then a non-positive half-life contributes nothing", func() {
			d := model.DoseEvent{CaffeineMg: 100, ConsumedAt: start}
			So(k.Contribution(d, 0, start.Add(time.Hour)), ShouldEqual, 0)
			So(k.Contribution(d, -2, start.Add(time.Hour)), ShouldEqual, 0)
		})
	})
}

func TestContributionSipped(t *testing.T) {
	Convey("Given a 200mg drink sipped over 20 minutes", t, func() {
		k := kinetics.New()
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		sipped := model.DoseEvent{ID: "d2", CaffeineMg: 200, ConsumedAt: start, Duration: 20 * time.Minute}
		bolus := model.DoseEvent{ID: "d3", CaffeineMg: 200, ConsumedAt: start}

		Convey("Then nothing is present before the first sip", func() {
			So(k.Contribution(sipped, 5, start.Add(-time.Minute)), ShouldEqual, 0)
		})

		Convey("Then the early curve sits below the bolus curve", func() {
			at := start.Add(10 * time.Minute)
			So(k.Contribution(sipped, 5, at), ShouldBeLessThan, k.Contribution(bolus, 5, at))
		})

		Convey("Then the curve rises past the end of the drink", func() {
			early := k.Contribution(sipped, 5, start.Add(5*time.Minute))
			late := k.Contribution(sipped, 5, start.Add(45*time.Minute))
			So(late, ShouldBeGreaterThan, early)
		})

		Convey("Then the curve eventually decays", func() {
			peakish := k.Contribution(sipped, 5, start.Add(45*time.Minute))
			faded := k.Contribution(sipped, 5, start.Add(8*time.Hour))
			So(faded, ShouldBeLessThan, peakish)
		})

		Convey("Then the contribution is never negative across a long scan", func() {
			for minute := -30; minute <= 12*60; minute += 7 {
				at := start.Add(time.Duration(minute) * time.Minute)
				So(k.Contribution(sipped, 5, at), ShouldBeGreaterThanOrEqualTo, 0)
			}
		})
	})

	Convey("Given a one-minute drink", t, func() {
		k := kinetics.New()
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		d := model.DoseEvent{CaffeineMg: 80, ConsumedAt: start, Duration: time.Minute}

		Convey("Then it is treated as a bolus", func() {
			So(k.Contribution(d, 5, start.Add(5*time.Hour)), ShouldAlmostEqual, 40, 1e-6)
		})
	})
}

func TestPeakOffset(t *testing.T) {
	Convey("Given the kinetics model", t, func() {
		k := kinetics.New()

		Convey("Then a bolus peaks one absorption delay after consumption", func() {
			So(k.PeakOffset(0), ShouldEqual, 30*time.Minute)
		})

		Convey("Then a sipped drink peaks later than a bolus", func() {
			So(k.PeakOffset(40*time.Minute), ShouldEqual, 50*time.Minute)
		})
	})
}

func TestCustomShape(t *testing.T) {
	Convey("Given custom shape parameters", t, func() {
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		dose := model.DoseEvent{CaffeineMg: 150, ConsumedAt: start, Duration: 15 * time.Minute}

		k := kinetics.New(
			kinetics.WithShape(3, 2),
			kinetics.WithAbsorptionDelay(20),
			kinetics.WithMinWindow(20),
		)

		Convey("Then the curve stays non-negative and eventually decays", func() {
			mid := k.Contribution(dose, 4, start.Add(time.Hour))
			late := k.Contribution(dose, 4, start.Add(10*time.Hour))
			So(mid, ShouldBeGreaterThan, 0)
			So(late, ShouldBeLessThan, mid)
			So(late, ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}
