package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Mood is a self-reported mood on a five-level scale.
type Mood string

const (
	MoodVeryPoor  Mood = "very_poor"
	MoodPoor      Mood = "poor"
	MoodNeutral   Mood = "neutral"
	MoodGood      Mood = "good"
	MoodExcellent Mood = "excellent"
)

var moodScores = map[Mood]int{
	MoodVeryPoor:  1,
	MoodPoor:      2,
	MoodNeutral:   3,
	MoodGood:      4,
	MoodExcellent: 5,
}

// Score maps the mood to 1..5, or 0 for an unknown value.
func (m Mood) Score() int {
	return moodScores[m]
}

func (m Mood) Valid() bool {
	_, ok := moodScores[m]
	return ok
}

// ParseMood validates s against the mood scale.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", errors.Wrapf(ErrInvalidMood, "%q", s)
	}
	return m, nil
}

// MoodTrend summarizes how a user's mood moved over a window.
type MoodTrend string

const (
	TrendNoData    MoodTrend = "No mood data available"
	TrendImproving MoodTrend = "improving"
	TrendDeclining MoodTrend = "declining"
	TrendStable    MoodTrend = "stable"
)

// neutralAverage is reported when there is no data.
const neutralAverage = 3.0

const trendThreshold = 0.5

// MoodEntry is one mood report.
type MoodEntry struct {
	UserID    string    `json:"userId"`
	Mood      Mood      `json:"mood"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MoodTracker keeps per-user mood history in timestamp order. All users
// share a single document.
type MoodTracker struct {
	docs   *docStore
	locks  *keyLock
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string][]MoodEntry
}

func newMoodTracker(driver Driver, o *options) *MoodTracker {
	return &MoodTracker{
		docs:    newDocStore(driver, CollectionMoods, o.logger, o.observer),
		locks:   newKeyLock(),
		logger:  o.logger,
		now:     o.now,
		entries: make(map[string][]MoodEntry),
	}
}

// LogMood records entry. A zero timestamp is set to now.
func (t *MoodTracker) LogMood(ctx context.Context, entry MoodEntry) error {
	if strings.TrimSpace(entry.UserID) == "" {
		return ErrInvalidUser
	}
	if !entry.Mood.Valid() {
		return errors.Wrapf(ErrInvalidMood, "%q", entry.Mood)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.now()
	}

	unlock := t.locks.Lock(entry.UserID)
	defer unlock()

	t.mu.Lock()
	list := t.entries[entry.UserID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Timestamp.After(entry.Timestamp) })
	list = append(list, MoodEntry{})
	copy(list[i+1:], list[i:])
	list[i] = entry
	t.entries[entry.UserID] = list
	t.mu.Unlock()

	_ = t.docs.write(ctx, moodsDocumentID, t.snapshot)
	return nil
}

// GetUserMoodHistory returns the entries of the last days days, oldest first.
func (t *MoodTracker) GetUserMoodHistory(_ context.Context, userID string, days int) []MoodEntry {
	cutoff := t.now().AddDate(0, 0, -days)
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.entries[userID]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(cutoff) })
	return append([]MoodEntry{}, list[i:]...)
}

// GetMoodTrend compares the average score of the first and second half of
// the window.
func (t *MoodTracker) GetMoodTrend(ctx context.Context, userID string, days int) MoodTrend {
	return moodTrend(t.GetUserMoodHistory(ctx, userID, days))
}

// GetAverageMood returns the mean score over the window, or 3 without data.
func (t *MoodTracker) GetAverageMood(ctx context.Context, userID string, days int) float64 {
	history := t.GetUserMoodHistory(ctx, userID, days)
	if len(history) == 0 {
		return neutralAverage
	}
	return averageScore(history)
}

func moodTrend(history []MoodEntry) MoodTrend {
	if len(history) == 0 {
		return TrendNoData
	}
	if len(history) < 2 {
		return TrendStable
	}
	mid := len(history) / 2
	delta := averageScore(history[mid:]) - averageScore(history[:mid])
	switch {
	case delta > trendThreshold:
		return TrendImproving
	case delta < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func averageScore(entries []MoodEntry) float64 {
	sum := 0
	for _, e := range entries {
		sum += e.Mood.Score()
	}
	return float64(sum) / float64(len(entries))
}

func (t *MoodTracker) snapshot() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return json.Marshal(t.entries)
}

func (t *MoodTracker) load(ctx context.Context) error {
	docs, err := t.docs.load(ctx)
	if err != nil {
		return err
	}
	loaded := make(map[string][]MoodEntry)
	if data, ok := docs[moodsDocumentID]; ok {
		if err := json.Unmarshal(data, &loaded); err != nil {
			t.docs.report(&PersistenceError{Collection: CollectionMoods, ID: moodsDocumentID, Op: OpDecode, Err: err})
			loaded = make(map[string][]MoodEntry)
		}
	}
	for userID, list := range loaded {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
		loaded[userID] = list
	}

	t.mu.Lock()
	t.entries = loaded
	t.mu.Unlock()
	t.logger.Info("mood entries loaded", "users", len(loaded))
	return nil
}

func (t *MoodTracker) flush(ctx context.Context) error {
	return t.docs.flush(ctx)
}
