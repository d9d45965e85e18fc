package models

// Sequence is a named monotonically increasing counter.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value uint64 `gorm:"not null"`
}

// All returns every model the service migrates.
func All() []interface{} {
	return []interface{}{
		&Student{}, &Room{}, &Staff{},
		&Incident{},
		&AttendanceDay{}, &AttendanceEvent{},
		&EquipmentUnit{}, &EquipmentReservation{}, &EquipmentBinding{}, &EquipmentFault{},
		&Sequence{},
	}
}
