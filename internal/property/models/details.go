package models

import (
	"encoding/json"
	"fmt"

	dErrors "propnest/pkg/domain-errors"
)

// Variant names the category-specific details block a property carries.
type Variant string

const (
	VariantNone        Variant = ""
	VariantResidential Variant = "residential"
	VariantCommercial  Variant = "commercial"
	VariantLand        Variant = "land"
)

// AreaUnit is the unit an area field is expressed in.
type AreaUnit string

const (
	AreaUnitSqFt  AreaUnit = "SQFT"
	AreaUnitSqM   AreaUnit = "SQM"
	AreaUnitAcre  AreaUnit = "ACRE"
	AreaUnitSqYrd AreaUnit = "SQYD"
)

// Details is the tagged union of category-specific property data. The set of
// implementations is closed to this package.
type Details interface {
	Variant() Variant
	// UnitArea is the area proxy used for price-per-unit comparisons.
	UnitArea() (float64, bool)
	sealed()
}

// ResidentialDetails describes apartments, houses and villas.
type ResidentialDetails struct {
	BHK         int      `json:"bhk"`
	Bathrooms   int      `json:"bathrooms,omitempty"`
	CarpetArea  float64  `json:"carpetArea,omitempty"`
	BuiltUpArea float64  `json:"builtUpArea,omitempty"`
	AreaUnit    AreaUnit `json:"areaUnit,omitempty"`
	Furnishing  string   `json:"furnishing,omitempty"`
	Floor       int      `json:"floor,omitempty"`
	TotalFloors int      `json:"totalFloors,omitempty"`
}

// residentialAreaPerBedroom is a crude area proxy: residential comparables are
// compared by bedroom count rather than measured area.
const residentialAreaPerBedroom = 1000

func (ResidentialDetails) Variant() Variant { return VariantResidential }
func (ResidentialDetails) sealed()          {}

func (d ResidentialDetails) UnitArea() (float64, bool) {
	if d.BHK <= 0 {
		return 0, false
	}
	return float64(d.BHK * residentialAreaPerBedroom), true
}

// CommercialDetails describes offices, shops, warehouses and industrial units.
type CommercialDetails struct {
	PropertyType string   `json:"propertyType,omitempty"`
	BuiltUpArea  float64  `json:"builtUpArea"`
	CarpetArea   float64  `json:"carpetArea,omitempty"`
	AreaUnit     AreaUnit `json:"areaUnit,omitempty"`
	Floor        int      `json:"floor,omitempty"`
	Washrooms    int      `json:"washrooms,omitempty"`
}

func (CommercialDetails) Variant() Variant { return VariantCommercial }
func (CommercialDetails) sealed()          {}

func (d CommercialDetails) UnitArea() (float64, bool) {
	if d.BuiltUpArea <= 0 {
		return 0, false
	}
	return d.BuiltUpArea, true
}

// LandDetails describes plots and agricultural land.
type LandDetails struct {
	PlotArea     float64  `json:"plotArea"`
	AreaUnit     AreaUnit `json:"areaUnit,omitempty"`
	Dimensions   string   `json:"dimensions,omitempty"`
	Zoning       string   `json:"zoning,omitempty"`
	BoundaryWall bool     `json:"boundaryWall,omitempty"`
}

func (LandDetails) Variant() Variant { return VariantLand }
func (LandDetails) sealed()          {}

func (d LandDetails) UnitArea() (float64, bool) {
	if d.PlotArea <= 0 {
		return 0, false
	}
	return d.PlotArea, true
}

// CheckDetails verifies that d is the variant the category carries. Details are
// optional; a nil value is always accepted.
func CheckDetails(c Category, d Details) error {
	if d == nil {
		return nil
	}
	want := c.Variant()
	if want == VariantNone {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("category %s does not take a details block", c))
	}
	if d.Variant() != want {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("category %s requires %s details, got %s", c, want, d.Variant()))
	}
	return nil
}

// MarshalDetails encodes the details payload without its tag; the tag is
// recovered from the property category on decode.
func MarshalDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d)
}

// UnmarshalDetails decodes a payload written by MarshalDetails.
func UnmarshalDetails(v Variant, raw []byte) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch v {
	case VariantResidential:
		var d ResidentialDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode residential details: %w", err)
		}
		return d, nil
	case VariantCommercial:
		var d CommercialDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode commercial details: %w", err)
		}
		return d, nil
	case VariantLand:
		var d LandDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode land details: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("no details variant %q", v)
	}
}
