package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/kdawg1232/jitter/internal/domain/model"
)

func storeProfile() model.UserProfile {
	return model.UserProfile{
		WeightKg:        70,
		Age:             30,
		Sex:             model.SexMale,
		AvgSleepHours7d: 7.5,
		CreatedAt:       time.Now().AddDate(0, 0, -14),
	}
}

func TestShardStore(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	Convey("Given a fresh shard store", t, func() {
		s := NewShardStore(ctx)
		defer s.Close()

		Convey("When reading an unknown user", func() {
			_, err := s.Profile(ctx, "nobody")

			Convey("Then it reports user not found", func() {
				So(errors.Is(err, ErrUserNotFound), ShouldBeTrue)
			})
		})

		Convey("When storing and reading a profile", func() {
			So(s.PutProfile(ctx, "u1", storeProfile()), ShouldBeNil)
			got, err := s.Profile(ctx, "u1")

			Convey("Then the profile round-trips", func() {
				So(err, ShouldBeNil)
				So(got.WeightKg, ShouldEqual, 70.0)
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When an empty user ID is used", func() {
			err := s.PutProfile(ctx, "", storeProfile())

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrInvalidUserID), ShouldBeTrue)
			})
		})
	})

	Convey("Given a store with a user", t, func() {
		s := NewShardStore(ctx)
		defer s.Close()
		So(s.PutProfile(ctx, "u1", storeProfile()), ShouldBeNil)

		Convey("When logging doses out of order", func() {
			later := model.DoseEvent{ID: "d2", CaffeineMg: 80, ConsumedAt: day.Add(10 * time.Hour)}
			earlier := model.DoseEvent{ID: "d1", CaffeineMg: 120, ConsumedAt: day.Add(7 * time.Hour)}

			logged, err := s.LogDose(ctx, "u1", later)
			So(err, ShouldBeNil)
			So(logged, ShouldBeTrue)
			logged, err = s.LogDose(ctx, "u1", earlier)
			So(err, ShouldBeNil)
			So(logged, ShouldBeTrue)

			Convey("Then reads come back in consumption order", func() {
				doses, err := s.Doses(ctx, "u1", time.Time{}, time.Time{})
				So(err, ShouldBeNil)
				So(len(doses), ShouldEqual, 2)
				So(doses[0].ID, ShouldEqual, "d1")
				So(doses[1].ID, ShouldEqual, "d2")
			})

			Convey("And range bounds filter by consumption time", func() {
				doses, err := s.Doses(ctx, "u1", day.Add(9*time.Hour), day.Add(11*time.Hour))
				So(err, ShouldBeNil)
				So(len(doses), ShouldEqual, 1)
				So(doses[0].ID, ShouldEqual, "d2")
			})
		})

		Convey("When the same dose ID is logged twice", func() {
			dose := model.DoseEvent{ID: "d1", CaffeineMg: 120, ConsumedAt: day.Add(7 * time.Hour)}

			first, err := s.LogDose(ctx, "u1", dose)
			So(err, ShouldBeNil)
			second, err2 := s.LogDose(ctx, "u1", dose)
			So(err2, ShouldBeNil)

			Convey("Then the retry is ignored", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)

				doses, err := s.Doses(ctx, "u1", time.Time{}, time.Time{})
				So(err, ShouldBeNil)
				So(len(doses), ShouldEqual, 1)
			})
		})

		Convey("When sessions and preferences are stored", func() {
			sessions := []model.FocusSession{
				{Name: "deep work", Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour), Importance: 3},
			}
			prefs := model.PlanningPreferences{Bedtime: day.Add(22 * time.Hour), MaxDailyCaffeineMg: 300}

			So(s.PutSessions(ctx, "u1", sessions), ShouldBeNil)
			So(s.PutPreferences(ctx, "u1", prefs), ShouldBeNil)

			Convey("Then both round-trip", func() {
				gotSessions, err := s.Sessions(ctx, "u1")
				So(err, ShouldBeNil)
				So(len(gotSessions), ShouldEqual, 1)
				So(gotSessions[0].Name, ShouldEqual, "deep work")

				gotPrefs, err := s.Preferences(ctx, "u1")
				So(err, ShouldBeNil)
				So(gotPrefs.MaxDailyCaffeineMg, ShouldEqual, 300.0)
			})
		})

		Convey("When preferences were never stored", func() {
			_, err := s.Preferences(ctx, "u1")

			Convey("Then the sentinel distinguishes it from a missing user", func() {
				So(errors.Is(err, ErrPreferencesNotSet), ShouldBeTrue)
			})
		})

		Convey("When no plan has been generated", func() {
			_, err := s.Plan(ctx, "u1")

			Convey("Then it reports plan not found", func() {
				So(errors.Is(err, ErrPlanNotFound), ShouldBeTrue)
			})
		})

		Convey("When a plan is stored", func() {
			plan := model.CaffeinePlan{PlanDate: day, TotalPlannedCaffeineMg: 120}
			So(s.PutPlan(ctx, "u1", plan), ShouldBeNil)

			Convey("Then the latest plan is readable", func() {
				got, err := s.Plan(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.TotalPlannedCaffeineMg, ShouldEqual, 120.0)
			})
		})

		Convey("When logging a dose for an unknown user", func() {
			_, err := s.LogDose(ctx, "ghost", model.DoseEvent{ID: "d9", CaffeineMg: 50, ConsumedAt: day})

			Convey("Then it reports user not found", func() {
				So(errors.Is(err, ErrUserNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent writers across many users", t, func() {
		s := NewShardStore(ctx, WithShardCount(4))
		defer s.Close()

		Convey("When profiles and doses land in parallel", func() {
			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id := fmt.Sprintf("user-%d", i)
					_ = s.PutProfile(ctx, id, storeProfile())
					_, _ = s.LogDose(ctx, id, model.DoseEvent{
						ID:         fmt.Sprintf("dose-%d", i),
						CaffeineMg: 95,
						ConsumedAt: day.Add(time.Duration(i) * time.Minute),
					})
				}(i)
			}
			wg.Wait()

			Convey("Then every user is tracked with their dose", func() {
				So(s.Count(ctx), ShouldEqual, 64)
				doses, err := s.Doses(ctx, "user-33", time.Time{}, time.Time{})
				So(err, ShouldBeNil)
				So(len(doses), ShouldEqual, 1)
			})
		})
	})
}
