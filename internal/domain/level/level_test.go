package level_test

import (
	"context"
	"testing"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/level"
	model "github.com/kdawg1232/jitter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLevelAt(t *testing.T) {
	Convey("Given an aggregator and a dose history", t, func() {
		agg := level.New()
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		doses := []model.DoseEvent{
			{ID: "a", CaffeineMg: 100, ConsumedAt: start},
			{ID: "b", CaffeineMg: 50, ConsumedAt: start.Add(2 * time.Hour)},
		}

		Convey("Then the level before any dose is zero", func() {
			So(agg.LevelAt(doses, 5, start.Add(-time.Hour)), ShouldEqual, 0)
		})

		Convey("Then contributions sum across doses", func() {
			at := start.Add(2 * time.Hour)
			solo := agg.LevelAt(doses[:1], 5, at)
			both := agg.LevelAt(doses, 5, at)
			So(both, ShouldAlmostEqual, solo+50, 1e-6)
		})

		Convey("Then the sum is order-independent", func() {
			at := start.Add(3 * time.Hour)
			reversed := []model.DoseEvent{doses[1], doses[0]}
			So(agg.LevelAt(reversed, 5, at), ShouldAlmostEqual, agg.LevelAt(doses, 5, at), 1e-9)
		})

		Convey("Then an empty history yields zero", func() {
			So(agg.LevelAt(nil, 5, start), ShouldEqual, 0)
		})
	})
}

func TestPeakInWindow(t *testing.T) {
	Convey("Given an aggregator and a decaying dose", t, func() {
		agg := level.New()
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		doses := []model.DoseEvent{{ID: "a", CaffeineMg: 200, ConsumedAt: start}}

		Convey("Then the peak is at least the current level for any window", func() {
			for _, hours := range []float64{0, 1, 3, 6} {
				at := start.Add(4 * time.Hour)
				So(agg.PeakInWindow(doses, 5, at, hours),
					ShouldBeGreaterThanOrEqualTo, agg.LevelAt(doses, 5, at))
			}
		})

		Convey("Then a 6h window from 3h out finds the initial spike", func() {
			peak := agg.PeakInWindow(doses, 5, start.Add(3*time.Hour), 6)
			So(peak, ShouldAlmostEqual, 200, 1e-6)
		})

		Convey("Then a zero window degenerates to the current level", func() {
			at := start.Add(2 * time.Hour)
			So(agg.PeakInWindow(doses, 5, at, 0), ShouldAlmostEqual, agg.LevelAt(doses, 5, at), 1e-9)
		})

		Convey("Then a negative window is treated as zero", func() {
			at := start.Add(2 * time.Hour)
			So(agg.PeakInWindow(doses, 5, at, -1), ShouldAlmostEqual, agg.LevelAt(doses, 5, at), 1e-9)
		})
	})
}

func TestCurve(t *testing.T) {
	Convey("Given an aggregator and a dose history", t, func() {
		agg := level.New(level.WithWorkers(4))
		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		doses := []model.DoseEvent{{ID: "a", CaffeineMg: 120, ConsumedAt: start}}

		Convey("When sampling six hours ahead at 30-minute steps", func() {
			samples, err := agg.Curve(context.Background(), doses, 5, start, 6, 30*time.Minute)

			Convey("Then the curve has the expected shape", func() {
				So(err, ShouldBeNil)
				So(len(samples), ShouldEqual, 13)
				So(samples[0].At, ShouldEqual, start)
				So(samples[0].LevelMg, ShouldAlmostEqual, 120, 1e-6)
				So(samples[12].At, ShouldEqual, start.Add(6*time.Hour))

				// Monotonically decaying after a single bolus.
				for i := 1; i < len(samples); i++ {
					So(samples[i].LevelMg, ShouldBeLessThan, samples[i-1].LevelMg)
				}
			})

			Convey("Then sampling matches the serial computation", func() {
				for _, s := range samples {
					So(s.LevelMg, ShouldAlmostEqual, agg.LevelAt(doses, 5, s.At), 1e-9)
				}
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			samples, err := agg.Curve(ctx, doses, 5, start, 6, 30*time.Minute)

			Convey("Then sampling reports the cancellation", func() {
				So(err, ShouldNotBeNil)
				So(samples, ShouldBeNil)
			})
		})

		Convey("When the interval is non-positive", func() {
			samples, err := agg.Curve(context.Background(), doses, 5, start, 1, 0)

			Convey("Then a default resolution is applied", func() {
				So(err, ShouldBeNil)
				So(len(samples), ShouldEqual, 13) // 1h at 5-minute default steps
			})
		})
	})
}
