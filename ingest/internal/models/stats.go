package models

import "time"

// Machine health labels.
const (
	StatusHealthy = "Healthy"
	StatusWarning = "Warning"
)

// MachineStats aggregates one machine over [Start, End).
type MachineStats struct {
	MachineID     string    `json:"machineId"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	EventsCount   int64     `json:"eventsCount"`
	DefectsCount  int64     `json:"defectsCount"`
	AvgDefectRate float64   `json:"avgDefectRate"`
	Status        string    `json:"status"`
}

// LineDefects is a raw per-line aggregate from the store.
type LineDefects struct {
	LineID       string
	TotalDefects int64
	EventCount   int64
}

// LineDefectStats is one row of the top defect lines ranking.
type LineDefectStats struct {
	LineID         string  `json:"lineId"`
	TotalDefects   int64   `json:"totalDefects"`
	EventCount     int64   `json:"eventCount"`
	DefectsPercent float64 `json:"defectsPercent"`
}
