// Package identity resolves a driver id from either identity store into one CanonicalDriver.
package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

type Resolver struct {
	primary     driverdir.PrimaryStore
	specialized driverdir.SpecializedStore
	log         *slog.Logger
}

func NewResolver(primary driverdir.PrimaryStore, specialized driverdir.SpecializedStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{primary: primary, specialized: specialized, log: log}
}

// Resolve maps ref to the canonical driver.
//
// A specialized-store match is preferred; its primary counterpart is found by email, then by
// (lastName, firstName). Otherwise a primary-store record with role=driver is used and its specialized
// counterpart is found the same way. When no counterpart exists the result carries the single id.
// A ref with an explicit Source is only looked up in that store.
func (r *Resolver) Resolve(ctx context.Context, ref domain.DriverRef) (domain.CanonicalDriver, error) {
	if strings.TrimSpace(string(ref.ID)) == "" {
		return domain.CanonicalDriver{}, apperr.Validation("invalid driver reference", map[string]any{"driverId": "required"})
	}
	if ref.Source != "" && !ref.Source.Valid() {
		return domain.CanonicalDriver{}, apperr.Validation("invalid driver reference", map[string]any{"source": "must be primary or specialized"})
	}

	if ref.Source == "" || ref.Source == domain.SourceSpecialized {
		s, err := r.specialized.GetByID(ctx, ref.ID)
		switch {
		case err == nil:
			return r.fromSpecialized(ctx, s)
		case !errors.Is(err, driverdir.ErrNotFound):
			return domain.CanonicalDriver{}, unavailable("specialized driver store", err)
		}
	}

	if ref.Source == "" || ref.Source == domain.SourcePrimary {
		p, err := r.primary.GetByID(ctx, ref.ID)
		switch {
		case err == nil && p.Role == driverdir.RoleDriver:
			return r.fromPrimary(ctx, p)
		case err == nil:
			r.log.InfoContext(ctx, "driver_resolve_not_a_driver", "driver_id", ref.ID, "role", p.Role)
		case !errors.Is(err, driverdir.ErrNotFound):
			return domain.CanonicalDriver{}, unavailable("primary identity store", err)
		}
	}

	return domain.CanonicalDriver{}, &apperr.Error{
		Kind:    apperr.KindDriverNotFound,
		Message: "driver not found in any identity store",
		Details: map[string]any{"driverId": string(ref.ID)},
	}
}

// ListCanonicalDrivers returns every driver known to either store, each real-world driver once,
// ordered by display name.
func (r *Resolver) ListCanonicalDrivers(ctx context.Context) ([]domain.CanonicalDriver, error) {
	specs, err := r.specialized.ListDrivers(ctx)
	if err != nil {
		return nil, unavailable("specialized driver store", err)
	}
	prims, err := r.primary.ListDrivers(ctx)
	if err != nil {
		return nil, unavailable("primary identity store", err)
	}

	usedPrimary := make(map[domain.DriverID]struct{})
	usedSpecialized := make(map[domain.DriverID]struct{})
	out := make([]domain.CanonicalDriver, 0, len(specs)+len(prims))

	for _, s := range specs {
		c, err := r.fromSpecialized(ctx, s)
		if err != nil {
			return nil, err
		}
		if c.PrimaryID != nil {
			if _, taken := usedPrimary[*c.PrimaryID]; taken {
				c.PrimaryID = nil
			} else {
				usedPrimary[*c.PrimaryID] = struct{}{}
			}
		}
		usedSpecialized[s.ID] = struct{}{}
		out = append(out, c)
	}
	for _, p := range prims {
		if _, taken := usedPrimary[p.ID]; taken {
			continue
		}
		c, err := r.fromPrimary(ctx, p)
		if err != nil {
			return nil, err
		}
		if c.SpecializedID != nil {
			if _, taken := usedSpecialized[*c.SpecializedID]; taken {
				c.SpecializedID = nil
			}
		}
		usedPrimary[p.ID] = struct{}{}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		di, dj := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if di == dj {
			return out[i].Key() < out[j].Key()
		}
		return di < dj
	})
	return out, nil
}

func (r *Resolver) fromSpecialized(ctx context.Context, s driverdir.SpecializedRecord) (domain.CanonicalDriver, error) {
	sid := s.ID
	c := domain.CanonicalDriver{
		SpecializedID: &sid,
		DisplayName:   displayName(s.FirstName, s.LastName),
		Email:         domain.NormalizeEmail(s.Email),
	}

	p, err := r.primary.FindByEmail(ctx, s.Email)
	if errors.Is(err, driverdir.ErrNotFound) {
		p, err = r.primary.FindByName(ctx, s.LastName, s.FirstName)
	}
	switch {
	case err == nil:
		pid := p.ID
		c.PrimaryID = &pid
		if c.Email == "" {
			c.Email = domain.NormalizeEmail(p.Email)
		}
		if c.DisplayName == "" {
			c.DisplayName = displayName(p.FirstName, p.LastName)
		}
	case errors.Is(err, driverdir.ErrNotFound):
		r.log.DebugContext(ctx, "driver_resolve_single_id", "specialized_id", s.ID)
	default:
		return domain.CanonicalDriver{}, unavailable("primary identity store", err)
	}
	return c, nil
}

func (r *Resolver) fromPrimary(ctx context.Context, p driverdir.PrimaryRecord) (domain.CanonicalDriver, error) {
	pid := p.ID
	c := domain.CanonicalDriver{
		PrimaryID:   &pid,
		DisplayName: displayName(p.FirstName, p.LastName),
		Email:       domain.NormalizeEmail(p.Email),
	}

	s, err := r.specialized.FindByEmail(ctx, p.Email)
	if errors.Is(err, driverdir.ErrNotFound) {
		s, err = r.specialized.FindByName(ctx, p.LastName, p.FirstName)
	}
	switch {
	case err == nil:
		sid := s.ID
		c.SpecializedID = &sid
		// The specialized store is the reference for driver profile data.
		if name := displayName(s.FirstName, s.LastName); name != "" {
			c.DisplayName = name
		}
		if e := domain.NormalizeEmail(s.Email); e != "" {
			c.Email = e
		}
	case errors.Is(err, driverdir.ErrNotFound):
		r.log.DebugContext(ctx, "driver_resolve_single_id", "primary_id", p.ID)
	default:
		return domain.CanonicalDriver{}, unavailable("specialized driver store", err)
	}
	return c, nil
}

func displayName(first, last string) string {
	return domain.NormalizeHumanName(first + " " + last)
}

func unavailable(what string, err error) error {
	return &apperr.Error{
		Kind:    apperr.KindCollaboratorUnavailable,
		Message: what + " unavailable",
		Err:     err,
	}
}
