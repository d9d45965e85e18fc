// Package rules holds the pure status-derivation logic shared by every read and
// write path. Nothing in here performs I/O.
package rules

import (
	"strings"

	"github.com/noah-isme/school-records-api/internal/models"
)

// TierPending reports whether a requested tier still owes a response.
func TierPending(state models.TierState) bool {
	if !state.Requested {
		return false
	}
	text := strings.TrimSpace(state.ResponseText)
	return text == "" || text == models.SentinelNotRequested
}

// PendingTiers lists the tiers of an incident that still owe a response.
func PendingTiers(incident models.Incident) []models.Tier {
	pending := make([]models.Tier, 0, len(models.Tiers))
	for _, tier := range models.Tiers {
		state, _ := incident.TierState(tier)
		if TierPending(state) {
			pending = append(pending, tier)
		}
	}
	return pending
}

// DeriveIncidentStatus collapses the tier states into the authoritative status.
func DeriveIncidentStatus(incident models.Incident) models.IncidentStatus {
	if len(PendingTiers(incident)) == 0 {
		return models.IncidentStatusClosed
	}
	return models.IncidentStatusOpen
}

// InitialTierState builds the state of a tier at incident creation. A tier
// that is not requested carries the sentinel so it never counts as pending.
func InitialTierState(requested bool) models.TierState {
	if requested {
		return models.TierState{Requested: true}
	}
	return models.TierState{ResponseText: models.SentinelNotRequested}
}

// ToggleTier requests or withdraws a tier on an existing incident. A newly
// requested tier drops the sentinel and becomes pending. A withdrawn tier
// keeps any real answer and otherwise takes the sentinel.
func ToggleTier(state models.TierState, requested bool) models.TierState {
	if state.Requested == requested {
		return state
	}
	state.Requested = requested
	text := strings.TrimSpace(state.ResponseText)
	switch {
	case requested && text == models.SentinelNotRequested:
		state.ResponseText = ""
		state.RespondedAt = nil
	case !requested && text == "":
		state.ResponseText = models.SentinelNotRequested
		state.RespondedAt = nil
	}
	return state
}

// ParseTier normalises a tier name.
func ParseTier(value string) (models.Tier, bool) {
	tier := models.Tier(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range models.Tiers {
		if tier == known {
			return tier, true
		}
	}
	return "", false
}

// ParseCategory normalises an incident category.
func ParseCategory(value string) (models.IncidentCategory, bool) {
	category := models.IncidentCategory(strings.ToUpper(strings.TrimSpace(value)))
	switch category {
	case models.IncidentCategoryBehavior,
		models.IncidentCategoryPerformance,
		models.IncidentCategoryAttendance,
		models.IncidentCategorySocial,
		models.IncidentCategoryOther:
		return category, true
	default:
		return "", false
	}
}
