package analytics

import (
	"math"
	"sort"
	"time"

	"codetrack/internal/models"
)

// Engine computes activity analytics from stored profiles. Now is injectable
// so date-window calculations are deterministic under test.
type Engine struct {
	Now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

func (e *Engine) today() time.Time {
	t := e.Now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyFromAccounts folds every account's recent submissions into per-day
// activity. A day is active when at least one submission landed on it.
func DailyFromAccounts(accounts []models.PlatformAccount) []models.DailyActivity {
	type dayAgg struct {
		solved    int
		platforms map[string]struct{}
	}
	byDay := make(map[string]*dayAgg)

	for i := range accounts {
		profile := accounts[i].ProfileData
		if profile == nil {
			continue
		}
		for _, sub := range profile.RecentSubmissions {
			if sub.Timestamp.IsZero() {
				continue
			}
			day := sub.Timestamp.UTC().Format(models.DateLayout)
			agg := byDay[day]
			if agg == nil {
				agg = &dayAgg{platforms: make(map[string]struct{})}
				byDay[day] = agg
			}
			if sub.Status == models.StatusSolved {
				agg.solved++
			}
			agg.platforms[accounts[i].Platform] = struct{}{}
		}
	}

	days := make([]models.DailyActivity, 0, len(byDay))
	for day, agg := range byDay {
		platforms := make([]string, 0, len(agg.platforms))
		for p := range agg.platforms {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		days = append(days, models.DailyActivity{
			Date:            day,
			ProblemsSolved:  agg.solved,
			PlatformsActive: platforms,
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// SubmissionsFromAccounts flattens recent submissions across accounts into
// the analytics view used by the topic breakdown.
func SubmissionsFromAccounts(accounts []models.PlatformAccount) []models.Submission {
	var subs []models.Submission
	for i := range accounts {
		profile := accounts[i].ProfileData
		if profile == nil {
			continue
		}
		for _, s := range profile.RecentSubmissions {
			subs = append(subs, models.Submission{
				Platform:    accounts[i].Platform,
				ProblemID:   s.ProblemID,
				ProblemName: s.Title,
				Status:      s.Status,
				Tags:        s.Tags,
				SubmittedAt: s.Timestamp,
			})
		}
	}
	return subs
}

// Heatmap returns one entry per calendar day over the trailing window,
// today inclusive. Days without activity are zero-filled, so a windowDays
// of 365 yields 366 entries.
func (e *Engine) Heatmap(days []models.DailyActivity, windowDays int) []models.DailyActivity {
	if windowDays < 0 {
		windowDays = 0
	}
	byDay := make(map[string]models.DailyActivity, len(days))
	for _, d := range days {
		byDay[d.Date] = d
	}

	end := e.today()
	start := end.AddDate(0, 0, -windowDays)

	out := make([]models.DailyActivity, 0, windowDays+1)
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		key := cur.Format(models.DateLayout)
		if d, ok := byDay[key]; ok {
			out = append(out, d)
		} else {
			out = append(out, models.DailyActivity{Date: key})
		}
	}
	return out
}

// Streak counts consecutive active days ending today. An inactive today does
// not break the streak: counting simply starts from yesterday instead.
func (e *Engine) Streak(days []models.DailyActivity) int {
	active := make(map[string]bool, len(days))
	for _, d := range days {
		if d.ProblemsSolved > 0 {
			active[d.Date] = true
		}
	}

	cur := e.today()
	if !active[cur.Format(models.DateLayout)] {
		cur = cur.AddDate(0, 0, -1)
	}

	streak := 0
	for active[cur.Format(models.DateLayout)] {
		streak++
		cur = cur.AddDate(0, 0, -1)
	}
	return streak
}

// ConsistencyScore is the share of active days over the trailing weeks*7-day
// window, as a rounded percentage. 14 active days over four weeks scores 50.
func (e *Engine) ConsistencyScore(days []models.DailyActivity, weeks int) int {
	if weeks <= 0 {
		return 0
	}
	windowDays := weeks * 7
	end := e.today()
	start := end.AddDate(0, 0, -(windowDays - 1))
	startKey := start.Format(models.DateLayout)
	endKey := end.Format(models.DateLayout)

	activeDays := 0
	for _, d := range days {
		if d.ProblemsSolved > 0 && d.Date >= startKey && d.Date <= endKey {
			activeDays++
		}
	}
	return int(math.Round(float64(activeDays) / float64(windowDays) * 100))
}

// TopicBreakdown groups tagged submissions by topic, most-solved first. Total
// counts every submission carrying the tag, attempts included; percentage is
// the per-topic solve rate.
func TopicBreakdown(subs []models.Submission) []models.TopicStat {
	type topicAgg struct {
		solved int
		total  int
	}
	counts := make(map[string]*topicAgg)
	for _, s := range subs {
		for _, topic := range s.Tags {
			if topic == "" {
				continue
			}
			agg := counts[topic]
			if agg == nil {
				agg = &topicAgg{}
				counts[topic] = agg
			}
			agg.total++
			if s.Status == models.StatusSolved {
				agg.solved++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	stats := make([]models.TopicStat, 0, len(counts))
	for topic, agg := range counts {
		stats = append(stats, models.TopicStat{
			Topic:      topic,
			Solved:     agg.solved,
			Total:      agg.total,
			Percentage: int(math.Round(float64(agg.solved) / float64(agg.total) * 100)),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Solved != stats[j].Solved {
			return stats[i].Solved > stats[j].Solved
		}
		return stats[i].Topic < stats[j].Topic
	})
	return stats
}

// WeakTopics returns the breakdown reordered by solve rate ascending, capped
// at limit. A topic with many failed attempts ranks weaker than one solved
// outright regardless of raw solve counts.
func WeakTopics(subs []models.Submission, limit int) []models.TopicStat {
	stats := TopicBreakdown(subs)
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Percentage != stats[j].Percentage {
			return stats[i].Percentage < stats[j].Percentage
		}
		return stats[i].Topic < stats[j].Topic
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
