package services

import (
	"time"

	"campusquest/models"
)

// ChallengeState classifies one user's standing on a challenge relative to
// the current calendar day.
type ChallengeState int

const (
	ChallengeNotStarted ChallengeState = iota
	ChallengeInProgress
	ChallengeCompletedToday
	// ChallengeCompletedStale is transient: it is always normalized back to
	// InProgress with a zero counter before anything else happens.
	ChallengeCompletedStale
)

func (s ChallengeState) String() string {
	switch s {
	case ChallengeNotStarted:
		return "not_started"
	case ChallengeInProgress:
		return "in_progress"
	case ChallengeCompletedToday:
		return "completed_today"
	case ChallengeCompletedStale:
		return "completed_stale"
	default:
		return "unknown"
	}
}

// ClassifyChallenge returns the state of p at now. A nil p means the user
// has never joined. A completed row with no timestamp is treated as stale.
func ClassifyChallenge(p *models.ChallengeProgress, now time.Time, loc *time.Location) ChallengeState {
	if p == nil {
		return ChallengeNotStarted
	}
	if !p.Completed {
		return ChallengeInProgress
	}
	if p.CompletedAt == nil || !SameCalendarDay(*p.CompletedAt, now, loc) {
		return ChallengeCompletedStale
	}
	return ChallengeCompletedToday
}

// NormalizeChallenge clears a stale completion in place and reports whether
// it changed anything. Every reader and writer of challenge progress goes
// through this before looking at the counter.
func NormalizeChallenge(p *models.ChallengeProgress, now time.Time, loc *time.Location) bool {
	if ClassifyChallenge(p, now, loc) != ChallengeCompletedStale {
		return false
	}
	p.Progress = 0
	p.Completed = false
	p.CompletedAt = nil
	p.XPEarned = 0
	return true
}

// resetColumns is the column form of NormalizeChallenge for guarded updates.
func resetColumns() map[string]interface{} {
	return map[string]interface{}{
		"progress":     0,
		"completed":    false,
		"completed_at": nil,
		"xp_earned":    0,
	}
}
