package processor

import (
	"time"

	"lead-engine/internal/store"
)

const (
	criticalInactiveDays = 30
	highInactiveDays     = 14
	mediumInactiveDays   = 7
)

// daysInactive measures inactivity from the most recent of last login and
// last message, falling back to the join date for members with no
// recorded activity.
func daysInactive(lastLogin, lastMessage *time.Time, joinedAt, now time.Time) int {
	latest := joinedAt
	if lastLogin != nil && lastLogin.After(latest) {
		latest = *lastLogin
	}
	if lastMessage != nil && lastMessage.After(latest) {
		latest = *lastMessage
	}
	days := int(now.Sub(latest).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// riskForDays maps inactivity to a churn risk tier and score.
func riskForDays(days int) (string, float64) {
	switch {
	case days >= criticalInactiveDays:
		return store.ChurnRiskCritical, 0.9
	case days >= highInactiveDays:
		return store.ChurnRiskHigh, 0.7
	case days >= mediumInactiveDays:
		return store.ChurnRiskMedium, 0.4
	default:
		return store.ChurnRiskLow, 0.1
	}
}

// activityScore rates engagement on a 0-100 scale. Inactivity drags the
// score down, message volume lifts it.
func activityScore(days, totalMessages int) float64 {
	score := 100 - 2*float64(days) + 0.1*float64(totalMessages)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// churnUpdateFor recomputes all derived churn fields for a member.
func churnUpdateFor(member store.Member, now time.Time) store.ChurnUpdateParams {
	days := daysInactive(member.LastLogin, member.LastMessage, member.JoinedAt, now)
	risk, score := riskForDays(days)
	return store.ChurnUpdateParams{
		DaysInactive:  days,
		ChurnRisk:     risk,
		ChurnScore:    score,
		ActivityScore: activityScore(days, member.TotalMessages),
	}
}
