package fixture

import (
	"strings"
	"time"
)

// SlotLayout is the local wall-clock format used for slot boundaries.
const SlotLayout = "2006-01-02T15:04:05"

type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (c *Catalog) SlotDuration(appointmentType string) time.Duration {
	if strings.Contains(strings.ToLower(appointmentType), "cleaning") {
		return time.Duration(c.schedule.CleaningMinutes) * time.Minute
	}
	return time.Duration(c.schedule.DefaultMinutes) * time.Minute
}

// AvailabilitySlots lists weekday slots between the two dates inclusive. A
// provider that does not serve the location has no slots there.
func (c *Catalog) AvailabilitySlots(locationID, providerID string, start, end time.Time, appointmentType string) []Slot {
	provider, ok := c.Provider(providerID)
	if !ok || !provider.ServesLocation(locationID) {
		return []Slot{}
	}

	duration := c.SlotDuration(appointmentType)
	slots := []Slot{}
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			for _, hour := range c.schedule.Hours {
				slotStart := day.Add(time.Duration(hour) * time.Hour)
				slots = append(slots, Slot{
					Start: slotStart.Format(SlotLayout),
					End:   slotStart.Add(duration).Format(SlotLayout),
				})
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}
