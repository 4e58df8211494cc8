package syncservice

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/normalize"
	"github.com/ErikKalkoken/evesync/internal/eveapi"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

// characterAliases maps keys of character payloads to their canonical names.
var characterAliases = map[string]string{
	"CharacterID":   "characterID",
	"CharacterName": "characterName",
	"alliance":      "allianceName",
	"balance":       "accountBalance",
	"bloodline":     "bloodLine",
	"bloodlineID":   "bloodLineID",
	"corporation":   "corporationName",
	"name":          "characterName",
}

// ignoredAttributes are never stored.
var ignoredAttributes = []string{eveapi.KeyCurrentTime, eveapi.KeyCachedUntil}

// characterAttrs returns the normalized and canonical attributes of a character payload.
func characterAttrs(data map[string]any) normalize.Attrs {
	return normalize.Flatten(data).Rename(characterAliases, ignoredAttributes...)
}

// characterPatchFromAttrs returns a patch for a character from canonical attributes.
// IDs of 0 are treated as absent.
func characterPatchFromAttrs(a normalize.Attrs) (app.CharacterPatch, error) {
	var p app.CharacterPatch
	var err error
	p.Name = a.String("characterName")
	p.CorporationName = a.String("corporationName")
	p.AllianceName = a.String("allianceName")
	p.FactionName = a.String("factionName")
	p.Race = a.String("race")
	p.BloodLine = a.String("bloodLine")
	p.Gender = a.String("gender")
	if p.CorporationID, err = nonZeroID(a, "corporationID"); err != nil {
		return p, err
	}
	if p.AllianceID, err = nonZeroID(a, "allianceID"); err != nil {
		return p, err
	}
	if p.FactionID, err = nonZeroID(a, "factionID"); err != nil {
		return p, err
	}
	if p.BloodLineID, err = nonZeroID(a, "bloodLineID"); err != nil {
		return p, err
	}
	if p.AccountBalance, err = a.Float64("accountBalance"); err != nil {
		return p, err
	}
	if p.SecurityStatus, err = a.Float64("securityStatus"); err != nil {
		return p, err
	}
	return p, nil
}

func nonZeroID(a normalize.Attrs, key string) (optional.Optional[int32], error) {
	v, err := a.Int32(key)
	if err != nil {
		return v, err
	}
	if v.ValueOrZero() == 0 {
		return optional.Optional[int32]{}, nil
	}
	return v, nil
}

// rows returns the rows of a rowset mapping, which is keyed by the row IDs.
// Rows are returned in ascending order of their IDs.
func rows(a normalize.Attrs, key string) ([]normalize.Attrs, error) {
	m := a.Map(key)
	type row struct {
		id    int64
		attrs normalize.Attrs
	}
	rr := make([]row, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v, ok := m[k].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %s of %s: unexpected type %T", k, key, m[k])
		}
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %s of %s: %w", k, key, err)
		}
		rr = append(rr, row{id: id, attrs: normalize.Attrs(v)})
	}
	slices.SortFunc(rr, func(a, b row) int {
		return cmp.Compare(a.id, b.id)
	})
	out := make([]normalize.Attrs, len(rr))
	for i, r := range rr {
		out[i] = r.attrs
	}
	return out, nil
}

// requiredInt64 returns an attribute which must be present.
func requiredInt64(a normalize.Attrs, key string) (int64, error) {
	v, err := a.Int64(key)
	if err != nil {
		return 0, err
	}
	x, err := v.Value()
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", key, app.ErrInvalid)
	}
	return x, nil
}
