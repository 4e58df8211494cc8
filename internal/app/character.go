package app

import (
	"time"

	"github.com/ErikKalkoken/evesync/internal/optional"
)

// Character is an Eve Online character accessible through one or more account keys.
//
// Characters are immutable. Changes are made through [CharacterPatch].
type Character struct {
	AccountBalance  optional.Optional[float64]
	AllianceID      optional.Optional[int32]
	AllianceName    string
	BloodLine       string
	BloodLineID     optional.Optional[int32]
	CorporationID   optional.Optional[int32]
	CorporationName string
	CreatedAt       time.Time
	FactionID       optional.Optional[int32]
	FactionName     string
	Gender          string
	ID              int32
	Name            string
	Orders          []CharacterOrder
	Race            string
	SecurityStatus  optional.Optional[float64]
	UpdatedAt       time.Time
}

// CharacterOrder is an opaque market order record of a character as reported by the remote API.
type CharacterOrder map[string]any

// CharacterPatch describes changes to a character. Empty fields are left untouched.
type CharacterPatch struct {
	AccountBalance  optional.Optional[float64]
	AllianceID      optional.Optional[int32]
	AllianceName    optional.Optional[string]
	BloodLine       optional.Optional[string]
	BloodLineID     optional.Optional[int32]
	CorporationID   optional.Optional[int32]
	CorporationName optional.Optional[string]
	FactionID       optional.Optional[int32]
	FactionName     optional.Optional[string]
	Gender          optional.Optional[string]
	Name            optional.Optional[string]
	Orders          optional.Optional[[]CharacterOrder]
	Race            optional.Optional[string]
	SecurityStatus  optional.Optional[float64]
}

// Merge returns a new patch with the fields of other applied on top of p.
func (p CharacterPatch) Merge(other CharacterPatch) CharacterPatch {
	p.AccountBalance = other.AccountBalance.Or(p.AccountBalance)
	p.AllianceID = other.AllianceID.Or(p.AllianceID)
	p.AllianceName = other.AllianceName.Or(p.AllianceName)
	p.BloodLine = other.BloodLine.Or(p.BloodLine)
	p.BloodLineID = other.BloodLineID.Or(p.BloodLineID)
	p.CorporationID = other.CorporationID.Or(p.CorporationID)
	p.CorporationName = other.CorporationName.Or(p.CorporationName)
	p.FactionID = other.FactionID.Or(p.FactionID)
	p.FactionName = other.FactionName.Or(p.FactionName)
	p.Gender = other.Gender.Or(p.Gender)
	p.Name = other.Name.Or(p.Name)
	p.Orders = other.Orders.Or(p.Orders)
	p.Race = other.Race.Or(p.Race)
	p.SecurityStatus = other.SecurityStatus.Or(p.SecurityStatus)
	return p
}

// ApplyPatch returns a copy of c with the patch applied.
func (c Character) ApplyPatch(p CharacterPatch) Character {
	c.AccountBalance = p.AccountBalance.Or(c.AccountBalance)
	c.AllianceID = p.AllianceID.Or(c.AllianceID)
	p.AllianceName.Assign(&c.AllianceName)
	p.BloodLine.Assign(&c.BloodLine)
	c.BloodLineID = p.BloodLineID.Or(c.BloodLineID)
	c.CorporationID = p.CorporationID.Or(c.CorporationID)
	p.CorporationName.Assign(&c.CorporationName)
	c.FactionID = p.FactionID.Or(c.FactionID)
	p.FactionName.Assign(&c.FactionName)
	p.Gender.Assign(&c.Gender)
	p.Name.Assign(&c.Name)
	p.Orders.Assign(&c.Orders)
	p.Race.Assign(&c.Race)
	c.SecurityStatus = p.SecurityStatus.Or(c.SecurityStatus)
	return c
}
