package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/mindcare/store"
)

// insightWindowDays is the look-back window of GetMoodInsights.
const insightWindowDays = 7

// LogMood records a mood entry for userID at the current time.
func (o *Orchestrator) LogMood(ctx context.Context, userID, mood, notes string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	m, err := store.ParseMood(mood)
	if err != nil {
		return &ValidationError{Field: "mood", Reason: fmt.Sprintf("%q is not one of very_poor, poor, neutral, good, excellent", mood)}
	}

	err = o.store.Moods.LogMood(ctx, store.MoodEntry{
		UserID:    userID,
		Mood:      m,
		Notes:     strings.TrimSpace(notes),
		Timestamp: o.config.Now(),
	})
	if errors.Is(err, store.ErrInvalidMood) || errors.Is(err, store.ErrInvalidUser) {
		return &ValidationError{Field: "mood", Reason: err.Error()}
	}
	return err
}

// GetMoodInsights summarizes the last seven days of moods.
func (o *Orchestrator) GetMoodInsights(ctx context.Context, userID string) string {
	moods := o.store.Moods
	trend := moods.GetMoodTrend(ctx, userID, insightWindowDays)
	avg := moods.GetAverageMood(ctx, userID, insightWindowDays)
	history := moods.GetUserMoodHistory(ctx, userID, insightWindowDays)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Your Mood Insights (Last %d Days)\n\n", insightWindowDays)
	fmt.Fprintf(&b, "Trend: %s\n", trend)
	fmt.Fprintf(&b, "Average Mood: %.1f/5\n", avg)
	fmt.Fprintf(&b, "Entries: %d\n\n", len(history))

	switch trend {
	case store.TrendDeclining:
		b.WriteString("I notice your mood has been declining. Would you like to talk about what's been happening?")
	case store.TrendImproving:
		b.WriteString("It's great to see your mood improving! Keep up the positive momentum.")
	default:
		b.WriteString("Your mood has been relatively stable. How are you feeling today?")
	}
	return b.String()
}

// ListSessions returns the user's sessions, oldest first.
func (o *Orchestrator) ListSessions(ctx context.Context, userID string) []*store.Session {
	return o.store.Sessions.GetAllSessions(ctx, userID)
}
