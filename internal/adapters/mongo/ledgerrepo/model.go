package ledgerrepo

import (
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

const dayLayout = "2006-01-02"

type ledgerModel struct {
	ID             string       `bson:"_id"`
	DriverID       string       `bson:"driver_id"`
	DriverSource   string       `bson:"driver_source"`
	Day            string       `bson:"day"`
	OpeningAmount  int64        `bson:"opening_amount"`
	RunningBalance int64        `bson:"running_balance"`
	Entries        []entryModel `bson:"entries"`
	Status         string       `bson:"status"`
	Notes          *string      `bson:"notes,omitempty"`
	CreatedBy      string       `bson:"created_by"`
	Version        int64        `bson:"version"`
	CreatedAt      time.Time    `bson:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at"`
	ClosedAt       *time.Time   `bson:"closed_at,omitempty"`
}

type entryModel struct {
	ID              string    `bson:"id"`
	Type            string    `bson:"type"`
	Amount          int64     `bson:"amount"`
	Description     string    `bson:"description"`
	LinkedTripID    *string   `bson:"linked_trip_id,omitempty"`
	LinkedExpenseID *string   `bson:"linked_expense_id,omitempty"`
	Timestamp       time.Time `bson:"ts"`
	CreatedBy       string    `bson:"created_by"`
}

func toModel(l domain.DailyLedger) ledgerModel {
	m := ledgerModel{
		ID:             string(l.ID),
		DriverID:       string(l.Driver.ID),
		DriverSource:   string(l.Driver.Source),
		Day:            l.Day.Format(dayLayout),
		OpeningAmount:  int64(l.OpeningAmount),
		RunningBalance: int64(l.RunningBalance),
		Entries:        make([]entryModel, 0, len(l.Entries)),
		Status:         string(l.Status),
		Notes:          l.Notes,
		CreatedBy:      string(l.CreatedBy),
		Version:        l.Version,
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
	}
	if l.ClosedAt != nil {
		c := l.ClosedAt.UTC()
		m.ClosedAt = &c
	}
	for _, e := range l.Entries {
		em := entryModel{
			ID:          string(e.ID),
			Type:        string(e.Type),
			Amount:      int64(e.Amount),
			Description: e.Description,
			Timestamp:   e.Timestamp.UTC(),
			CreatedBy:   string(e.CreatedBy),
		}
		if e.LinkedTripID != nil {
			v := string(*e.LinkedTripID)
			em.LinkedTripID = &v
		}
		if e.LinkedExpenseID != nil {
			v := string(*e.LinkedExpenseID)
			em.LinkedExpenseID = &v
		}
		m.Entries = append(m.Entries, em)
	}
	return m
}

func fromModel(m ledgerModel, loc *time.Location) (domain.DailyLedger, error) {
	day, err := time.ParseInLocation(dayLayout, m.Day, loc)
	if err != nil {
		return domain.DailyLedger{}, err
	}
	l := domain.DailyLedger{
		ID:             domain.LedgerID(m.ID),
		Driver:         domain.DriverRef{ID: domain.DriverID(m.DriverID), Source: domain.IdentitySource(m.DriverSource)},
		Day:            day,
		OpeningAmount:  domain.Amount(m.OpeningAmount),
		RunningBalance: domain.Amount(m.RunningBalance),
		Entries:        make([]domain.LedgerEntry, 0, len(m.Entries)),
		Status:         domain.LedgerStatus(m.Status),
		Notes:          m.Notes,
		CreatedBy:      domain.ActorID(m.CreatedBy),
		Version:        m.Version,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.ClosedAt != nil {
		c := m.ClosedAt.UTC()
		l.ClosedAt = &c
	}
	for _, em := range m.Entries {
		e := domain.LedgerEntry{
			ID:          domain.EntryID(em.ID),
			Type:        domain.EntryType(em.Type),
			Amount:      domain.Amount(em.Amount),
			Description: em.Description,
			Timestamp:   em.Timestamp.UTC(),
			CreatedBy:   domain.ActorID(em.CreatedBy),
		}
		if em.LinkedTripID != nil {
			v := domain.TripID(*em.LinkedTripID)
			e.LinkedTripID = &v
		}
		if em.LinkedExpenseID != nil {
			v := domain.ExpenseID(*em.LinkedExpenseID)
			e.LinkedExpenseID = &v
		}
		l.Entries = append(l.Entries, e)
	}
	return l, nil
}
