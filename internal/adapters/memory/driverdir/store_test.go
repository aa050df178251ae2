package driverdir

import (
	"context"
	"errors"
	"testing"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

func TestPrimaryStore_FindByEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewPrimaryStore(driverdir.PrimaryRecord{ID: "u1", Email: "Awa.Diallo@Example.com", Role: driverdir.RoleDriver})

	got, err := s.FindByEmail(context.Background(), "  awa.diallo@example.COM ")
	if err != nil {
		t.Fatalf("FindByEmail() err=%v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("FindByEmail() id=%q, want u1", got.ID)
	}
}

func TestPrimaryStore_FindByName_LowestIDWins(t *testing.T) {
	t.Parallel()

	s := NewPrimaryStore(
		driverdir.PrimaryRecord{ID: "u9", LastName: "Kone", FirstName: "Ibrahim"},
		driverdir.PrimaryRecord{ID: "u2", LastName: "KONE ", FirstName: "ibrahim"},
	)
	got, err := s.FindByName(context.Background(), "kone", "Ibrahim")
	if err != nil {
		t.Fatalf("FindByName() err=%v", err)
	}
	if got.ID != "u2" {
		t.Fatalf("FindByName() id=%q, want u2", got.ID)
	}
}

func TestPrimaryStore_ListDrivers_FiltersRole(t *testing.T) {
	t.Parallel()

	s := NewPrimaryStore(
		driverdir.PrimaryRecord{ID: "b", Role: driverdir.RoleDriver},
		driverdir.PrimaryRecord{ID: "a", Role: "client"},
		driverdir.PrimaryRecord{ID: "c", Role: driverdir.RoleDriver},
	)
	got, err := s.ListDrivers(context.Background())
	if err != nil {
		t.Fatalf("ListDrivers() err=%v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("ListDrivers()=%+v, want [b c]", got)
	}
}

func TestSpecializedStore_NotFound(t *testing.T) {
	t.Parallel()

	s := NewSpecializedStore()
	if _, err := s.GetByID(context.Background(), domain.DriverID("x")); !errors.Is(err, driverdir.ErrNotFound) {
		t.Fatalf("GetByID() err=%v, want ErrNotFound", err)
	}
	if _, err := s.FindByEmail(context.Background(), ""); !errors.Is(err, driverdir.ErrNotFound) {
		t.Fatalf("FindByEmail(\"\") err=%v, want ErrNotFound", err)
	}
}

func TestSpecializedStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	v := "veh-1"
	s := NewSpecializedStore(driverdir.SpecializedRecord{ID: "d1", AssignedVehicleID: &v})

	got, err := s.GetByID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("GetByID() err=%v", err)
	}
	*got.AssignedVehicleID = "mutated"

	again, _ := s.GetByID(context.Background(), "d1")
	if *again.AssignedVehicleID != "veh-1" {
		t.Fatalf("stored record mutated through returned copy: %q", *again.AssignedVehicleID)
	}
}

func TestPrimaryStore_FindByName_PrefersDriverRole(t *testing.T) {
	t.Parallel()

	s := NewPrimaryStore(
		driverdir.PrimaryRecord{ID: "a", LastName: "Kouassi", FirstName: "Jean", Email: "jean@example.com", Role: "client"},
		driverdir.PrimaryRecord{ID: "b", LastName: "Kouassi", FirstName: "Jean", Email: "JEAN@example.com", Role: driverdir.RoleDriver},
	)
	got, err := s.FindByName(context.Background(), "kouassi", "jean")
	if err != nil || got.ID != "b" {
		t.Fatalf("FindByName()=%+v err=%v, want b", got, err)
	}
	got, err = s.FindByEmail(context.Background(), "jean@example.com")
	if err != nil || got.ID != "b" {
		t.Fatalf("FindByEmail()=%+v err=%v, want b", got, err)
	}
}
