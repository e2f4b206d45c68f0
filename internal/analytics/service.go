// Package analytics reads check-in progress figures off the remote
// database for the organizer dashboard.
package analytics

import (
	"context"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

// Service handles check-in analytics queries.
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// EventCheckInStats is the aggregated check-in progress for one event.
type EventCheckInStats struct {
	EventID        string          `json:"event_id"`
	TotalTickets   int             `json:"total_tickets"`
	CheckedIn      int             `json:"checked_in"`
	Remaining      int             `json:"remaining"`
	CheckInRate    float64         `json:"check_in_rate"`
	HourlyCheckIns []HourlyCheckIn `json:"hourly_check_ins"`
	ByStaff        []StaffCheckIns `json:"by_staff"`
}

// HourlyCheckIn counts arrivals per hour.
type HourlyCheckIn struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// StaffCheckIns counts how many attendees each staff member processed.
type StaffCheckIns struct {
	StaffID string `json:"staff_id"`
	Count   int    `json:"count"`
}

// GetEventCheckInStats returns check-in progress for a specific event.
// Only tickets with an accepted payment status count toward the totals.
func (s *Service) GetEventCheckInStats(ctx context.Context, eventID string) (*EventCheckInStats, error) {
	total, err := s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("payment_status IN (?)", bun.In(models.AcceptedPaymentStatuses)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	checkedIn, err := s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("payment_status IN (?)", bun.In(models.AcceptedPaymentStatuses)).
		Where("is_checked_in = ?", true).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &EventCheckInStats{
		EventID:      eventID,
		TotalTickets: total,
		CheckedIn:    checkedIn,
		Remaining:    total - checkedIn,
	}
	if total > 0 {
		stats.CheckInRate = float64(checkedIn) / float64(total)
	}

	type hourlyRaw struct {
		Hour  string `bun:"hour"`
		Count int    `bun:"count"`
	}
	var hourly []hourlyRaw
	err = s.db.NewRaw(`
		SELECT to_char(date_trunc('hour', checked_in_at), 'YYYY-MM-DD HH24:00') AS hour,
		       COUNT(*) AS count
		FROM tickets
		WHERE event_id = ? AND is_checked_in = true AND checked_in_at IS NOT NULL
		GROUP BY 1
		ORDER BY 1`, eventID).
		Scan(ctx, &hourly)
	if err != nil {
		return nil, err
	}
	for _, row := range hourly {
		stats.HourlyCheckIns = append(stats.HourlyCheckIns, HourlyCheckIn{Hour: row.Hour, Count: row.Count})
	}

	type staffRaw struct {
		StaffID string `bun:"staff_id"`
		Count   int    `bun:"count"`
	}
	var staff []staffRaw
	err = s.db.NewRaw(`
		SELECT checked_in_by AS staff_id, COUNT(*) AS count
		FROM tickets
		WHERE event_id = ? AND is_checked_in = true AND checked_in_by <> ''
		GROUP BY checked_in_by
		ORDER BY count DESC`, eventID).
		Scan(ctx, &staff)
	if err != nil {
		return nil, err
	}
	for _, row := range staff {
		stats.ByStaff = append(stats.ByStaff, StaffCheckIns{StaffID: row.StaffID, Count: row.Count})
	}

	return stats, nil
}

// GetOrganizerCheckInStats returns per-event progress across all of an
// organizer's events.
func (s *Service) GetOrganizerCheckInStats(ctx context.Context, organizerID string) ([]EventCheckInStats, error) {
	type eventRaw struct {
		EventID   string `bun:"event_id"`
		Total     int    `bun:"total"`
		CheckedIn int    `bun:"checked_in"`
	}
	var rows []eventRaw
	err := s.db.NewRaw(`
		SELECT t.event_id AS event_id,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE t.is_checked_in) AS checked_in
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		WHERE e.organizer_id = ? AND t.payment_status IN (?)
		GROUP BY t.event_id`, organizerID, bun.In(models.AcceptedPaymentStatuses)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	stats := make([]EventCheckInStats, 0, len(rows))
	for _, row := range rows {
		entry := EventCheckInStats{
			EventID:      row.EventID,
			TotalTickets: row.Total,
			CheckedIn:    row.CheckedIn,
			Remaining:    row.Total - row.CheckedIn,
		}
		if row.Total > 0 {
			entry.CheckInRate = float64(row.CheckedIn) / float64(row.Total)
		}
		stats = append(stats, entry)
	}
	return stats, nil
}
