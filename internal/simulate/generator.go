package simulate

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kdawg1232/jitter/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor  = 1000000
	archetypeDivisor    = 6
	sessionCountDivisor = 3
)

// Consumer archetypes, weighted toward moderate drinkers.
const (
	caseModerate     = 0
	caseHeavy        = 1
	caseLight        = 2
	caseSmoker       = 3
	caseShortSleeper = 4
	caseAbstainer    = 5
)

// Dose size buckets, mg. Roughly espresso, drip coffee, energy drink.
var doseSizesMg = []float64{63, 95, 150, 200}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(max int64) int64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(max))
	return n.Int64()
}

// generateUsers creates the specified number of users with unique IDs.
func generateUsers(ctx context.Context, config *Config, stats *Stats) ([]User, error) {
	logger.Get().Info(ctx, "generating synthetic users", logger.Int("numUsers", config.NumUsers))

	day := time.Now().UTC().Truncate(24 * time.Hour)
	users := make([]User, config.NumUsers)
	for i := range users {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		users[i] = generateSingleUser(i, day, config.DosesPerUser)
	}

	stats.UsersGenerated = len(users)
	logger.Get().Info(ctx, "generated users successfully", logger.Int("count", len(users)))

	return users, nil
}

// generateSingleUser builds one user from a consumer archetype.
func generateSingleUser(index int, day time.Time, dosesPerUser int) User {
	profile := generateProfile()

	user := User{
		ID:      "sim_" + strconv.Itoa(index) + "_" + uuid.New().String(),
		Profile: profile,
	}

	// Doses spread between 07:00 and 16:00.
	for d := 0; d < dosesPerUser; d++ {
		consumedAt := day.Add(7 * time.Hour).
			Add(time.Duration(randomInt(9*60)) * time.Minute)
		dose := Dose{
			ID:         uuid.New().String(),
			CaffeineMg: doseSizesMg[randomInt(int64(len(doseSizesMg)))],
			ConsumedAt: consumedAt.Format(time.RFC3339),
		}
		// About a third of doses are sipped over 10-30 minutes.
		if randomInt(3) == 0 {
			minutes := 10 + randomInt(21)
			dose.ConsumptionDuration = "00:" + pad2(minutes) + ":00"
		}
		user.Doses = append(user.Doses, dose)
	}

	// One to three focus sessions between 09:00 and 20:00.
	sessionCount := 1 + randomInt(sessionCountDivisor)
	for s := int64(0); s < sessionCount; s++ {
		start := day.Add(9 * time.Hour).
			Add(time.Duration(randomInt(9*60)) * time.Minute)
		end := start.Add(time.Duration(60+randomInt(120)) * time.Minute)
		user.Sessions = append(user.Sessions, FocusSession{
			Name:       "session-" + strconv.FormatInt(s+1, 10),
			Start:      start.Format(time.RFC3339),
			End:        end.Format(time.RFC3339),
			Importance: int(1 + randomInt(3)),
		})
	}

	user.Prefs = Preferences{
		Bedtime:            day.Add(22*time.Hour + time.Duration(randomInt(91))*time.Minute).Format(time.RFC3339),
		MaxDailyCaffeineMg: 300 + float64(randomInt(3))*50,
		MinDoseGapMinutes:  60,
		EarliestDoseHour:   6,
		LatestDoseHour:     20,
		BedtimeCeilingMg:   50,
		FocusFloorMg:       30,
	}

	return user
}

// generateProfile picks a consumer archetype and fills in plausible numbers.
func generateProfile() Profile {
	profile := Profile{
		WeightKg:        55 + getRandomFloat()*45,
		Age:             18 + int(randomInt(50)),
		Sex:             []string{"male", "female", "other"}[randomInt(3)],
		AvgSleepHours7d: 7 + getRandomFloat(),
	}

	switch randomInt(archetypeDivisor) {
	case caseModerate:
		profile.MeanDailyCaffeineMg = 150 + getRandomFloat()*100
	case caseHeavy:
		profile.MeanDailyCaffeineMg = 350 + getRandomFloat()*150
	case caseLight:
		profile.MeanDailyCaffeineMg = 40 + getRandomFloat()*60
	case caseSmoker:
		profile.Smoker = true
		profile.MeanDailyCaffeineMg = 200 + getRandomFloat()*150
	case caseShortSleeper:
		profile.AvgSleepHours7d = 4.5 + getRandomFloat()*1.5
		profile.MeanDailyCaffeineMg = 250 + getRandomFloat()*100
	case caseAbstainer:
		profile.MeanDailyCaffeineMg = 0
	}

	return profile
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
