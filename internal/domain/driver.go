package domain

import "strings"

// IdentitySource names the identity store a driver id was issued by.
type IdentitySource string

const (
	// SourcePrimary is the shared user store (clients, admins, drivers with role=driver).
	SourcePrimary IdentitySource = "primary"
	// SourceSpecialized is the driver-only store carrying license and vehicle assignment data.
	SourceSpecialized IdentitySource = "specialized"
)

func (s IdentitySource) Valid() bool {
	return s == SourcePrimary || s == SourceSpecialized
}

// DriverRef is a driver id tagged with the store it came from.
// An empty Source means the caller does not know which store issued the id.
type DriverRef struct {
	ID     DriverID
	Source IdentitySource
}

func (r DriverRef) String() string {
	if r.Source == "" {
		return string(r.ID)
	}
	return string(r.Source) + ":" + string(r.ID)
}

// CanonicalDriver is the resolved identity of one real-world driver across both stores.
// At least one of PrimaryID and SpecializedID is set.
type CanonicalDriver struct {
	PrimaryID     *DriverID
	SpecializedID *DriverID

	DisplayName string
	Email       string
}

// IDs returns the available ids, primary first.
func (c CanonicalDriver) IDs() []DriverID {
	out := make([]DriverID, 0, 2)
	if c.PrimaryID != nil {
		out = append(out, *c.PrimaryID)
	}
	if c.SpecializedID != nil && (c.PrimaryID == nil || *c.SpecializedID != *c.PrimaryID) {
		out = append(out, *c.SpecializedID)
	}
	return out
}

// Refs returns the available ids tagged with their source, primary first.
func (c CanonicalDriver) Refs() []DriverRef {
	out := make([]DriverRef, 0, 2)
	if c.PrimaryID != nil {
		out = append(out, DriverRef{ID: *c.PrimaryID, Source: SourcePrimary})
	}
	if c.SpecializedID != nil {
		out = append(out, DriverRef{ID: *c.SpecializedID, Source: SourceSpecialized})
	}
	return out
}

// Has reports whether id is one of the driver's ids.
func (c CanonicalDriver) Has(id DriverID) bool {
	for _, v := range c.IDs() {
		if v == id {
			return true
		}
	}
	return false
}

// Key is a stable identifier for deduplicating canonical drivers.
func (c CanonicalDriver) Key() string {
	var b strings.Builder
	if c.PrimaryID != nil {
		b.WriteString("p:")
		b.WriteString(string(*c.PrimaryID))
	}
	b.WriteString("|")
	if c.SpecializedID != nil {
		b.WriteString("s:")
		b.WriteString(string(*c.SpecializedID))
	}
	return b.String()
}
