package notify

import (
	"time"

	"github.com/greenpatch/greenpatch-backend/garden/model"
)

// Dashboard partitions the active instances by due date relative to the
// configured timezone's calendar boundaries.
type Dashboard struct {
	Overdue  []model.NotificationInstance `json:"overdue"`
	Today    []model.NotificationInstance `json:"today"`
	Tomorrow []model.NotificationInstance `json:"tomorrow"`
	ThisWeek []model.NotificationInstance `json:"thisWeek"`
	Later    []model.NotificationInstance `json:"later"`
}

func (s *Scheduler) Dashboard() (*Dashboard, error) {
	active, err := s.ActiveInstances()
	if err != nil {
		return nil, err
	}

	loc := s.settings.Location()
	now := s.now().In(loc)

	startToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startTomorrow := startToday.AddDate(0, 0, 1)
	startAfterTomorrow := startToday.AddDate(0, 0, 2)
	endOfWeek := startToday.AddDate(0, 0, 7)

	d := &Dashboard{}
	for _, inst := range active {
		if inst.NextDue == nil {
			d.Later = append(d.Later, inst)
			continue
		}

		due := inst.NextDue.In(loc)
		switch {
		case due.Before(now):
			d.Overdue = append(d.Overdue, inst)
		case due.Before(startTomorrow):
			d.Today = append(d.Today, inst)
		case due.Before(startAfterTomorrow):
			d.Tomorrow = append(d.Tomorrow, inst)
		case due.Before(endOfWeek):
			d.ThisWeek = append(d.ThisWeek, inst)
		default:
			d.Later = append(d.Later, inst)
		}
	}

	return d, nil
}
