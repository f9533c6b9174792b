package platform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"codetrack/internal/models"
)

// maxRecentSubmissions bounds the stored submission window.
const maxRecentSubmissions = 20

const (
	timeUnix    = "unix"
	timeRFC3339 = "rfc3339"
)

type contestSpec struct {
	listKey   string
	nameKey   string
	rankKey   string
	oldKey    string
	newKey    string
	changeKey string
	timeKey   string
	timeKind  string
}

type submissionSpec struct {
	listKey   string
	idKey     string
	titleKey  string
	statusKey string
	langKey   string
	tagsKey   string
	timeKey   string
	timeKind  string
	// upstream statuses (lowercased) that count as solved
	solvedStatuses map[string]bool
}

// profileSpec is one platform's mapping table from raw field names to the
// canonical schema. Keys left empty mean the platform never supplies the
// field and the canonical default applies.
type profileSpec struct {
	hasRating     bool
	ratingKey     string
	maxRatingKey  string
	solvedKey     string
	contestsKey   string
	difficultyKey string // raw key holding {label: count}
	contests      *contestSpec
	submissions   *submissionSpec
}

var profileSpecs = map[string]profileSpec{
	Codeforces: {
		hasRating:    true,
		ratingKey:    "rating",
		maxRatingKey: "maxRating",
		solvedKey:    "problemsSolved",
		contestsKey:  "contestsParticipated",
		contests: &contestSpec{
			listKey: "ratingHistory", nameKey: "contestName", rankKey: "rank",
			oldKey: "oldRating", newKey: "newRating", changeKey: "ratingChange",
			timeKey: "ratingUpdateTimeSeconds", timeKind: timeUnix,
		},
		submissions: &submissionSpec{
			listKey: "recentSubmissions", idKey: "problemId", titleKey: "problemName",
			statusKey: "verdict", langKey: "programmingLanguage", tagsKey: "tags",
			timeKey: "creationTimeSeconds", timeKind: timeUnix,
			solvedStatuses: map[string]bool{"ok": true},
		},
	},
	LeetCode: {
		hasRating:     true,
		ratingKey:     "rating",
		maxRatingKey:  "maxRating",
		solvedKey:     "problemsSolved",
		contestsKey:   "contestsParticipated",
		difficultyKey: "solvedByDifficulty",
		contests: &contestSpec{
			listKey: "contestHistory", nameKey: "contestName", rankKey: "ranking",
			newKey: "rating", timeKey: "startTime", timeKind: timeUnix,
		},
		submissions: &submissionSpec{
			listKey: "recentSubmissions", idKey: "problemId", titleKey: "title",
			statusKey: "status", langKey: "language",
			timeKey: "timestamp", timeKind: timeUnix,
			solvedStatuses: map[string]bool{"accepted": true},
		},
	},
	CodeChef: {
		hasRating:   true,
		ratingKey:   "rating",
		solvedKey:   "problemsSolved",
		contestsKey: "contestsParticipated",
	},
	AtCoder: {
		hasRating:    true,
		ratingKey:    "rating",
		maxRatingKey: "maxRating",
		solvedKey:    "problemsSolved",
		contestsKey:  "contestsParticipated",
		contests: &contestSpec{
			listKey: "contestHistory", nameKey: "contestName", rankKey: "place",
			oldKey: "oldRating", newKey: "newRating", changeKey: "ratingChange",
			timeKey: "endTime", timeKind: timeRFC3339,
		},
	},
	GitHub:        {},
	StackOverflow: {},
}

// Normalize maps a raw adapter payload to the canonical profile. Pure
// function, no I/O. Raw fields the table does not consume are carried through
// opaquely in Extras.
func Normalize(platformID string, raw RawProfile) (*models.CanonicalProfile, error) {
	spec, ok := profileSpecs[platformID]
	if !ok {
		return nil, Errf(KindUnsupportedPlatform, "no mapping for platform: %s", platformID)
	}

	profile := models.EmptyProfile()
	consumed := map[string]bool{}

	if spec.hasRating {
		if spec.ratingKey != "" {
			if v, ok := asInt(raw[spec.ratingKey]); ok {
				profile.Rating = &v
			}
			consumed[spec.ratingKey] = true
		}
		if spec.maxRatingKey != "" {
			if v, ok := asInt(raw[spec.maxRatingKey]); ok {
				profile.MaxRating = &v
			}
			consumed[spec.maxRatingKey] = true
		}
	}

	if spec.solvedKey != "" {
		if v, ok := asInt(raw[spec.solvedKey]); ok {
			profile.ProblemsSolved = v
		}
		consumed[spec.solvedKey] = true
	}
	if spec.contestsKey != "" {
		if v, ok := asInt(raw[spec.contestsKey]); ok {
			profile.ContestsParticipated = v
		}
		consumed[spec.contestsKey] = true
	}

	if spec.difficultyKey != "" {
		if counts, ok := asIntMap(raw[spec.difficultyKey]); ok {
			for label, n := range counts {
				switch strings.ToLower(label) {
				case "easy":
					profile.Easy = n
				case "medium":
					profile.Medium = n
				case "hard":
					profile.Hard = n
				}
			}
		}
		consumed[spec.difficultyKey] = true
	}

	if spec.contests != nil {
		profile.ContestHistory = normalizeContests(spec.contests, raw[spec.contests.listKey])
		consumed[spec.contests.listKey] = true
	}
	if spec.submissions != nil {
		profile.RecentSubmissions = normalizeSubmissions(spec.submissions, raw[spec.submissions.listKey])
		consumed[spec.submissions.listKey] = true
	}

	for k, v := range raw {
		if consumed[k] {
			continue
		}
		if profile.Extras == nil {
			profile.Extras = map[string]any{}
		}
		profile.Extras[k] = v
	}

	return profile, nil
}

func normalizeContests(spec *contestSpec, v any) []models.ContestEntry {
	items := asMapSlice(v)
	out := make([]models.ContestEntry, 0, len(items))
	for _, item := range items {
		entry := models.ContestEntry{
			Name: asStringOr(item[spec.nameKey], ""),
		}
		entry.Rank, _ = asInt(item[spec.rankKey])
		entry.OldRating, _ = asInt(item[spec.oldKey])
		entry.NewRating, _ = asInt(item[spec.newKey])
		if spec.changeKey != "" {
			entry.RatingChange, _ = asInt(item[spec.changeKey])
		} else {
			entry.RatingChange = entry.NewRating - entry.OldRating
		}
		entry.Timestamp = asTime(item[spec.timeKey], spec.timeKind)
		out = append(out, entry)
	}
	return out
}

func normalizeSubmissions(spec *submissionSpec, v any) []models.SubmissionEntry {
	items := asMapSlice(v)
	out := make([]models.SubmissionEntry, 0, len(items))
	for _, item := range items {
		if len(out) >= maxRecentSubmissions {
			break
		}
		status := models.StatusAttempted
		if spec.solvedStatuses[strings.ToLower(asStringOr(item[spec.statusKey], ""))] {
			status = models.StatusSolved
		}
		out = append(out, models.SubmissionEntry{
			ProblemID: asStringOr(item[spec.idKey], ""),
			Title:     asStringOr(item[spec.titleKey], ""),
			Status:    status,
			Language:  asStringOr(item[spec.langKey], ""),
			Tags:      asStringSlice(item[spec.tagsKey]),
			Timestamp: asTime(item[spec.timeKey], spec.timeKind),
		})
	}
	return out
}

// Conversion helpers tolerate both adapter-built values and json-decoded ones.

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(math.Round(n)), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func asStringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return []string{}
	}
}

func asIntMap(v any) (map[string]int, bool) {
	switch m := v.(type) {
	case map[string]int:
		return m, true
	case map[string]any:
		out := make(map[string]int, len(m))
		for k, item := range m {
			if n, ok := asInt(item); ok {
				out[k] = n
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func asMapSlice(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, item := range s {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func asTime(v any, kind string) time.Time {
	switch kind {
	case timeRFC3339:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UTC()
			}
		}
	default:
		if sec, ok := asInt64(v); ok && sec > 0 {
			return time.Unix(sec, 0).UTC()
		}
	}
	return time.Time{}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
