// Package ledgerrepo stores daily ledgers as MongoDB documents, entries embedded.
//
// Updates use optimistic concurrency on the version field: a write only lands if the
// version read is still current, otherwise the mutation is re-run against fresh state.
package ledgerrepo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

const (
	collectionName = "daily_ledgers"
	maxAttempts    = 32
)

type Repo struct {
	coll *mongo.Collection
	loc  *time.Location
}

func NewRepo(db *mongo.Database, loc *time.Location) *Repo {
	if loc == nil {
		loc = time.UTC
	}
	return &Repo{coll: db.Collection(collectionName), loc: loc}
}

// Migrate creates the (driver, day) unique index and the day listing index.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "driver_id", Value: 1}, {Key: "driver_source", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("driver_day_unique"),
		},
		{
			Keys:    bson.D{{Key: "day", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("day_status"),
		},
	})
	if err != nil {
		return fmt.Errorf("ledger/mongo: migrate indexes: %w", err)
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, l domain.DailyLedger) error {
	if l.ID == "" {
		// treat empty ID as invalid
		return ledgerrepo.ErrDuplicate
	}
	if l.Version == 0 {
		l.Version = 1
	}
	if _, err := r.coll.InsertOne(ctx, toModel(l)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledgerrepo.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.LedgerID) (domain.DailyLedger, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *Repo) GetByDriverDay(ctx context.Context, driver domain.DriverRef, day time.Time) (domain.DailyLedger, error) {
	return r.findOne(ctx, bson.M{
		"driver_id":     string(driver.ID),
		"driver_source": string(driver.Source),
		"day":           day.Format(dayLayout),
	})
}

func (r *Repo) List(ctx context.Context, f ledgerrepo.Filter) ([]domain.DailyLedger, error) {
	filter := bson.M{}
	if len(f.Drivers) > 0 {
		or := make(bson.A, 0, len(f.Drivers))
		for _, d := range f.Drivers {
			or = append(or, bson.M{"driver_id": string(d.ID), "driver_source": string(d.Source)})
		}
		filter["$or"] = or
	}
	day := bson.M{}
	if !f.From.IsZero() {
		day["$gte"] = f.From.Format(dayLayout)
	}
	if !f.To.IsZero() {
		day["$lte"] = f.To.Format(dayLayout)
	}
	if len(day) > 0 {
		filter["day"] = day
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "day", Value: 1}, {Key: "driver_id", Value: 1}, {Key: "driver_source", Value: 1},
	}))
	if err != nil {
		return nil, err
	}
	var models []ledgerModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, err
	}
	out := make([]domain.DailyLedger, 0, len(models))
	for _, m := range models {
		l, err := fromModel(m, r.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id domain.LedgerID, fn ledgerrepo.MutateFunc) (domain.DailyLedger, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return domain.DailyLedger{}, err
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			if errors.Is(err, ledgerrepo.ErrNoChange) {
				return cur, nil
			}
			return domain.DailyLedger{}, err
		}
		next.ID = cur.ID
		next.Driver = cur.Driver
		next.Day = cur.Day
		next.CreatedAt = cur.CreatedAt
		next.CreatedBy = cur.CreatedBy
		next.Version = cur.Version + 1

		res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": string(id), "version": cur.Version}, toModel(next))
		if err != nil {
			return domain.DailyLedger{}, err
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
		if err := backoff(ctx, attempt); err != nil {
			return domain.DailyLedger{}, err
		}
	}
	return domain.DailyLedger{}, ledgerrepo.ErrConflict
}

func (r *Repo) findOne(ctx context.Context, filter bson.M) (domain.DailyLedger, error) {
	var m ledgerModel
	if err := r.coll.FindOne(ctx, filter).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.DailyLedger{}, ledgerrepo.ErrNotFound
		}
		return domain.DailyLedger{}, err
	}
	return fromModel(m, r.loc)
}

func backoff(ctx context.Context, attempt int) error {
	d := time.Duration(1+min(attempt, 8)) * time.Millisecond
	d += time.Duration(rand.Int63n(int64(time.Millisecond)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
