package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

type Service struct {
	ledgers   ledgerrepo.Repository
	publisher events.Publisher
	clock     clock.Clock
	log       *slog.Logger

	newLedgerID func() domain.LedgerID
	newEntryID  func() domain.EntryID
}

func NewService(ledgers ledgerrepo.Repository, publisher events.Publisher, clk clock.Clock, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		ledgers:   ledgers,
		publisher: publisher,
		clock:     clk,
		log:       log,
		newLedgerID: func() domain.LedgerID {
			return domain.LedgerID(uuid.NewString())
		},
		newEntryID: func() domain.EntryID {
			return domain.EntryID(uuid.NewString())
		},
	}
}

// SetNewLedgerIDForTest overrides ledger ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewLedgerIDForTest(fn func() domain.LedgerID) {
	if fn != nil {
		s.newLedgerID = fn
	}
}

// SetNewEntryIDForTest overrides entry ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewEntryIDForTest(fn func() domain.EntryID) {
	if fn != nil {
		s.newEntryID = fn
	}
}

// Day returns the business-local calendar day containing t.
func (s *Service) Day(t time.Time) time.Time {
	return domain.NormalizeDay(t, s.clock.Location())
}

// GetOrCreateDailyLedger returns the driver's ledger for day, creating it with opening if none exists.
// An existing ledger is returned unchanged; the opening of the first call wins.
func (s *Service) GetOrCreateDailyLedger(ctx context.Context, driver domain.DriverRef, day time.Time, opening domain.Amount, createdBy domain.ActorID) (domain.DailyLedger, error) {
	if err := validateDriver(driver); err != nil {
		return domain.DailyLedger{}, err
	}
	if day.IsZero() {
		return domain.DailyLedger{}, apperr.Validation("invalid day", map[string]any{"day": "required"})
	}
	day = s.Day(day)

	existing, err := s.ledgers.GetByDriverDay(ctx, driver, day)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ledgerrepo.ErrNotFound) {
		return domain.DailyLedger{}, err
	}
	// Opening only matters on the create path.
	if opening < 0 {
		return domain.DailyLedger{}, apperr.Validation("invalid opening amount", map[string]any{"openingAmount": "must be >= 0"})
	}

	now := s.clock.Now()
	l, err := domain.NewDailyLedger(s.newLedgerID(), driver, day, opening, actorOrSystem(createdBy), now)
	if err != nil {
		return domain.DailyLedger{}, mapDomainErr(err)
	}
	if err := s.ledgers.Create(ctx, l); err != nil {
		if !errors.Is(err, ledgerrepo.ErrDuplicate) {
			return domain.DailyLedger{}, err
		}
		// Lost the creation race: the winner's ledger is the one.
		s.log.InfoContext(ctx, "ledger_create_race_lost", "driver", driver.String(), "day", day.Format(time.DateOnly))
		winner, rerr := s.ledgers.GetByDriverDay(ctx, driver, day)
		if rerr != nil {
			return domain.DailyLedger{}, apperr.Wrap(apperr.KindDuplicateLedger, "ledger already exists for driver and day", errors.Join(err, rerr))
		}
		return winner, nil
	}

	s.log.InfoContext(ctx, "ledger_created", "ledger_id", l.ID, "driver", driver.String(), "day", day.Format(time.DateOnly), "opening", int64(opening))
	s.publish(ctx, events.KindLedgerCreated, l, opening, l.CreatedBy)
	return l, nil
}

// AppendEntry records one cash movement and updates the running balance in the same atomic write.
// An entry that repeats an existing (type, linked trip) or (type, linked expense) pair is not applied
// again; the ledger is returned as is.
func (s *Service) AppendEntry(ctx context.Context, id domain.LedgerID, in NewEntry) (domain.DailyLedger, error) {
	now := s.clock.Now()
	e := domain.LedgerEntry{
		ID:              s.newEntryID(),
		Type:            in.Type,
		Amount:          in.Amount,
		Description:     strings.TrimSpace(in.Description),
		LinkedTripID:    in.LinkedTripID,
		LinkedExpenseID: in.LinkedExpenseID,
		Timestamp:       now,
		CreatedBy:       actorOrSystem(in.CreatedBy),
	}
	if err := e.Validate(); err != nil {
		return domain.DailyLedger{}, mapDomainErr(err)
	}

	var applied bool
	l, err := s.ledgers.Update(ctx, id, func(l *domain.DailyLedger) error {
		applied = false
		ok, err := l.Append(e, now)
		if err != nil {
			return err
		}
		if !ok {
			return ledgerrepo.ErrNoChange
		}
		applied = true
		return nil
	})
	if err != nil {
		return domain.DailyLedger{}, s.mapErr(id, err)
	}

	if !applied {
		s.log.InfoContext(ctx, "ledger_entry_replayed", "ledger_id", id, "type", string(e.Type))
		return l, nil
	}
	s.log.InfoContext(ctx, "ledger_entry_appended", "ledger_id", id, "type", string(e.Type), "amount", int64(e.Amount), "balance", int64(l.RunningBalance))
	s.publish(ctx, events.KindEntryAppended, l, e.Signed(), e.CreatedBy)
	return l, nil
}

// Close freezes the ledger. Closing is terminal.
func (s *Service) Close(ctx context.Context, id domain.LedgerID, notes string, actor domain.ActorID) (domain.DailyLedger, error) {
	now := s.clock.Now()
	l, err := s.ledgers.Update(ctx, id, func(l *domain.DailyLedger) error {
		return l.Close(notes, now)
	})
	if err != nil {
		return domain.DailyLedger{}, s.mapErr(id, err)
	}
	s.log.InfoContext(ctx, "ledger_closed", "ledger_id", id, "balance", int64(l.RunningBalance))
	s.publish(ctx, events.KindLedgerClosed, l, 0, actorOrSystem(actor))
	return l, nil
}

// UpdateOpeningAmount corrects the opening amount of an active ledger and shifts the balance by the delta.
func (s *Service) UpdateOpeningAmount(ctx context.Context, id domain.LedgerID, amount domain.Amount, actor domain.ActorID) (domain.DailyLedger, error) {
	if amount < 0 {
		return domain.DailyLedger{}, apperr.Validation("invalid opening amount", map[string]any{"openingAmount": "must be >= 0"})
	}
	now := s.clock.Now()
	var delta domain.Amount
	l, err := s.ledgers.Update(ctx, id, func(l *domain.DailyLedger) error {
		delta = 0
		d, err := l.CorrectOpening(amount, now)
		if err != nil {
			return err
		}
		if d == 0 {
			return ledgerrepo.ErrNoChange
		}
		delta = d
		return nil
	})
	if err != nil {
		return domain.DailyLedger{}, s.mapErr(id, err)
	}
	if delta != 0 {
		s.log.InfoContext(ctx, "ledger_opening_corrected", "ledger_id", id, "delta", int64(delta), "balance", int64(l.RunningBalance))
		s.publish(ctx, events.KindOpeningCorrected, l, delta, actorOrSystem(actor))
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, id domain.LedgerID) (domain.DailyLedger, error) {
	l, err := s.ledgers.GetByID(ctx, id)
	if err != nil {
		return domain.DailyLedger{}, s.mapErr(id, err)
	}
	return l, nil
}

func (s *Service) GetForDriverDay(ctx context.Context, driver domain.DriverRef, day time.Time) (domain.DailyLedger, error) {
	if err := validateDriver(driver); err != nil {
		return domain.DailyLedger{}, err
	}
	l, err := s.ledgers.GetByDriverDay(ctx, driver, s.Day(day))
	if err != nil {
		if errors.Is(err, ledgerrepo.ErrNotFound) {
			return domain.DailyLedger{}, &apperr.Error{
				Kind:    apperr.KindLedgerNotFound,
				Message: "no ledger for driver and day",
				Details: map[string]any{"driver": driver.String(), "day": s.Day(day).Format(time.DateOnly)},
				Err:     err,
			}
		}
		return domain.DailyLedger{}, err
	}
	return l, nil
}

// CloseActiveForDay closes every ledger of day that is still active.
// Ledgers closed concurrently by someone else are counted as processed but not closed by this run.
func (s *Service) CloseActiveForDay(ctx context.Context, day time.Time, notes string) (CloseReport, error) {
	day = s.Day(day)
	rep := CloseReport{Day: day, Details: []CloseDetail{}}

	active, err := s.ledgers.List(ctx, ledgerrepo.Filter{From: day, To: day, Status: domain.LedgerStatusActive})
	if err != nil {
		return rep, err
	}
	for _, l := range active {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Processed++
		d := CloseDetail{LedgerID: l.ID, Driver: l.Driver, Balance: l.RunningBalance}
		closed, err := s.Close(ctx, l.ID, notes, domain.ActorSystem)
		switch {
		case err == nil:
			d.Closed = true
			d.Balance = closed.RunningBalance
			rep.Closed++
		case apperr.Is(err, apperr.KindAlreadyClosed):
		default:
			d.Error = err.Error()
			rep.Failed++
			s.log.WarnContext(ctx, "ledger_auto_close_failed", "ledger_id", l.ID, logging.Err(err))
		}
		rep.Details = append(rep.Details, d)
	}
	s.log.InfoContext(ctx, "ledgers_auto_closed", "day", day.Format(time.DateOnly), "processed", rep.Processed, "closed", rep.Closed, "failed", rep.Failed)
	return rep, nil
}

func (s *Service) publish(ctx context.Context, kind events.Kind, l domain.DailyLedger, amount domain.Amount, actor domain.ActorID) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.Event{
		Kind:     kind,
		LedgerID: l.ID,
		Driver:   l.Driver,
		Day:      l.Day,
		Amount:   amount,
		Balance:  l.RunningBalance,
		Version:  l.Version,
		At:       s.clock.Now(),
		Actor:    actor,
	})
	if err != nil {
		s.log.WarnContext(ctx, "ledger_event_publish_failed", "kind", string(kind), "ledger_id", l.ID, logging.Err(err))
	}
}

func validateDriver(d domain.DriverRef) error {
	details := map[string]any{}
	if strings.TrimSpace(string(d.ID)) == "" {
		details["driver.id"] = "required"
	}
	if !d.Source.Valid() {
		details["driver.source"] = "must be primary or specialized"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid driver reference", details)
	}
	return nil
}

func actorOrSystem(a domain.ActorID) domain.ActorID {
	if strings.TrimSpace(string(a)) == "" {
		return domain.ActorSystem
	}
	return a
}

func (s *Service) mapErr(id domain.LedgerID, err error) error {
	switch {
	case errors.Is(err, ledgerrepo.ErrNotFound):
		return &apperr.Error{Kind: apperr.KindLedgerNotFound, Message: "ledger not found", Details: map[string]any{"ledgerId": string(id)}, Err: err}
	case errors.Is(err, ledgerrepo.ErrConflict):
		return apperr.Wrap(apperr.KindConflict, "ledger is being modified, retry", err)
	default:
		return mapDomainErr(err)
	}
}

func mapDomainErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrLedgerClosed):
		return apperr.Wrap(apperr.KindLedgerClosed, "ledger is closed", err)
	case errors.Is(err, domain.ErrAlreadyClosed):
		return apperr.Wrap(apperr.KindAlreadyClosed, "ledger is already closed", err)
	case errors.Is(err, domain.ErrInvalidEntryType):
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid entry", Details: map[string]any{"type": "must be one of recette, depense, commission, remboursement"}, Err: err}
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid entry", Details: map[string]any{"amount": "must be > 0"}, Err: err}
	case errors.Is(err, domain.ErrMissingDescription):
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid entry", Details: map[string]any{"description": "must be non-empty"}, Err: err}
	case errors.Is(err, domain.ErrNegativeOpening):
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid opening amount", Details: map[string]any{"openingAmount": "must be >= 0"}, Err: err}
	default:
		return err
	}
}
