// Package analytics aggregates usage sessions and activity ratings into dashboard
// statistics and biweekly report sections. Everything here is pure.
package analytics

import (
	"math"
	"sort"
	"time"

	"atamind/internal/models"
)

const (
	MinRating = 1
	MaxRating = 5

	// ReportWindow is the trailing period covered by a biweekly report
	ReportWindow = 14 * 24 * time.Hour

	reportDays          = 14
	idealSessionMinutes = 30
	mostRatedLimit      = 10
	generalActivityID   = "general"
)

// ClampRating forces r into [1,5]
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SessionDuration returns the non-negative length of [start,end] in minutes
func SessionDuration(start, end time.Time) float64 {
	d := end.Sub(start).Minutes()
	if d < 0 {
		return 0
	}
	return d
}

// ClampAverage keeps a session's average rating in [0,5]
func ClampAverage(avg float64) float64 {
	if avg < 0 || math.IsNaN(avg) {
		return 0
	}
	if avg > MaxRating {
		return MaxRating
	}
	return avg
}

// AverageRating is the mean rating, 0 for no ratings
func AverageRating(ratings []models.ActivityRating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	return float64(sum) / float64(len(ratings))
}

// SumUsage totals the sessions that started at or after since
func SumUsage(sessions []models.UsageSession, since time.Time) models.PeriodUsage {
	var u models.PeriodUsage
	for _, s := range sessions {
		if s.Start.Before(since) {
			continue
		}
		u.TimeSpentMinutes += s.DurationMinutes
		u.ActivitiesCompleted += s.ActivitiesCompleted
		u.Sessions++
	}
	u.TimeSpentMinutes = Round1(u.TimeSpentMinutes)
	return u
}

// StartOfDay truncates t to local midnight in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EngagementScore averages frequency, satisfaction and duration sub-scores.
// Each sub-score is capped at 100 and is 0 on empty input.
func EngagementScore(sessions []models.UsageSession, ratings []models.ActivityRating) float64 {
	if len(sessions) == 0 && len(ratings) == 0 {
		return 0
	}

	frequency := math.Min(float64(len(sessions))/reportDays*100, 100)
	satisfaction := math.Min(AverageRating(ratings)/MaxRating*100, 100)

	duration := 0.0
	if len(sessions) > 0 {
		total := 0.0
		for _, s := range sessions {
			total += math.Max(s.DurationMinutes, 0)
		}
		duration = math.Min(total/float64(len(sessions))/idealSessionMinutes*100, 100)
	}

	return Round1((frequency + satisfaction + duration) / 3)
}

// ContentTypes groups ratings by activity type
func ContentTypes(ratings []models.ActivityRating) map[string]models.ContentTypeStats {
	totals := make(map[string]int)
	out := make(map[string]models.ContentTypeStats)
	for _, r := range ratings {
		stats := out[r.ActivityType]
		stats.Count++
		out[r.ActivityType] = stats
		totals[r.ActivityType] += r.Rating
	}
	for k, stats := range out {
		stats.AverageRating = Round1(float64(totals[k]) / float64(stats.Count))
		out[k] = stats
	}
	return out
}

// MostRated groups by (type, id) and returns the ten most frequent, most frequent first
func MostRated(ratings []models.ActivityRating) []models.RatedActivity {
	type key struct{ typ, id string }
	index := make(map[key]int)
	var out []models.RatedActivity
	var totals []int

	for _, r := range ratings {
		id := generalActivityID
		if r.ActivityID != nil && *r.ActivityID != "" {
			id = *r.ActivityID
		}
		k := key{r.ActivityType, id}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, models.RatedActivity{ActivityType: r.ActivityType, ActivityID: id})
			totals = append(totals, 0)
		}
		out[i].Count++
		totals[i] += r.Rating
	}
	for i := range out {
		out[i].AverageRating = Round1(float64(totals[i]) / float64(out[i].Count))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > mostRatedLimit {
		out = out[:mostRatedLimit]
	}
	return out
}

// Favorites ranks activity types by average rating, highest first
func Favorites(ratings []models.ActivityRating) []models.FavoriteActivity {
	stats := ContentTypes(ratings)
	out := make([]models.FavoriteActivity, 0, len(stats))
	for typ, s := range stats {
		out = append(out, models.FavoriteActivity{
			ActivityType:  typ,
			AverageRating: s.AverageRating,
			TotalRatings:  s.Count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRating != out[j].AverageRating {
			return out[i].AverageRating > out[j].AverageRating
		}
		return out[i].ActivityType < out[j].ActivityType
	})
	return out
}

// Patterns builds the peak hour histogram, the chronological rating trend and the favorites
func Patterns(sessions []models.UsageSession, ratings []models.ActivityRating) models.EngagementPatterns {
	peaks := make(map[int]int)
	for _, s := range sessions {
		peaks[s.Start.Hour()]++
	}

	sorted := make([]models.ActivityRating, len(ratings))
	copy(sorted, ratings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RatedAt.Before(sorted[j].RatedAt) })

	trend := make([]models.RatingPoint, 0, len(sorted))
	for _, r := range sorted {
		trend = append(trend, models.RatingPoint{
			Date:         r.RatedAt.Format("2006-01-02"),
			Rating:       r.Rating,
			ActivityType: r.ActivityType,
		})
	}

	return models.EngagementPatterns{
		PeakUsageHours:     peaks,
		RatingTrend:        trend,
		FavoriteActivities: Favorites(ratings),
		EngagementScore:    EngagementScore(sessions, ratings),
	}
}

// VoiceRatings filters the ratings of guardian voice messages
func VoiceRatings(ratings []models.ActivityRating) []models.ActivityRating {
	var out []models.ActivityRating
	for _, r := range ratings {
		if r.ActivityType == models.ActivityTypeVoiceMessage {
			out = append(out, r)
		}
	}
	return out
}

// VoiceReport summarises voice message ratings. Suggestions are filled by the caller.
func VoiceReport(voice []models.ActivityRating) models.VoiceMessageReport {
	report := models.VoiceMessageReport{
		Count:         len(voice),
		AverageRating: Round1(AverageRating(voice)),
		Feedback:      []string{},
	}
	for _, r := range voice {
		if r.Feedback != nil && *r.Feedback != "" {
			report.Feedback = append(report.Feedback, *r.Feedback)
		}
	}
	return report
}

// BuildReport fills every deterministic section of a biweekly report.
// Insights, voice suggestions and recommendations are left for the caller.
func BuildReport(childID string, start, end time.Time, sessions []models.UsageSession, ratings []models.ActivityRating) *models.BiweeklyReport {
	usage := SumUsage(sessions, start)

	avgSession := 0.0
	if len(sessions) > 0 {
		avgSession = Round1(usage.TimeSpentMinutes / float64(len(sessions)))
	}

	patterns := Patterns(sessions, ratings)
	return &models.BiweeklyReport{
		ChildID:              childID,
		PeriodStart:          start,
		PeriodEnd:            end,
		TotalTimeMinutes:     usage.TimeSpentMinutes,
		TotalActivities:      usage.ActivitiesCompleted,
		AverageSessionLength: avgSession,
		ContentTypes:         ContentTypes(ratings),
		MostRated:            MostRated(ratings),
		VoiceMessages:        VoiceReport(VoiceRatings(ratings)),
		EngagementPatterns:   patterns,
		EngagementScore:      patterns.EngagementScore,
	}
}
