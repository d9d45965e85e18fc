package rules

import (
	"strings"

	"github.com/noah-isme/school-records-api/internal/models"
)

// DefaultDamageKeywords flag a fault description as physical damage.
var DefaultDamageKeywords = []string{"danificado", "quebrado", "damaged", "broken", "cracked", "not working"}

// Admit reports whether a reservation of quantity units fits the currently
// available inventory. Requests are never partially fulfilled.
func Admit(available int64, quantity int) bool {
	return quantity > 0 && int64(quantity) <= available
}

// IsDamageReport reports whether a fault description mentions damage.
func IsDamageReport(description string, keywords []string) bool {
	text := strings.ToLower(description)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// CanBind reports whether a unit can be handed to a student for the given
// reservation at pickup time.
func CanBind(unit models.EquipmentUnit, reservationID uint) bool {
	switch unit.Status {
	case models.UnitAvailable:
		return true
	case models.UnitReserved:
		return unit.ReservationID != nil && *unit.ReservationID == reservationID
	default:
		return false
	}
}

// ReturnedStatus is the state a unit lands in when its reservation is returned.
// Maintenance is terminal until someone resets it by hand.
func ReturnedStatus(current models.UnitStatus) models.UnitStatus {
	if current == models.UnitMaintenance {
		return models.UnitMaintenance
	}
	return models.UnitAvailable
}
