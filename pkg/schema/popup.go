package schema

import "fmt"

// PopupSizeUnit is the unit of a popup dimension.
type PopupSizeUnit string

const (
	UnitPixels  PopupSizeUnit = "px"
	UnitPercent PopupSizeUnit = "%"
)

// PopupSizeDimension is a width or height of the host-rendered popup.
type PopupSizeDimension struct {
	Unit  PopupSizeUnit `json:"unit"`
	Value float64       `json:"value"`
}

// Pixels returns a pixel dimension.
func Pixels(v float64) PopupSizeDimension { return PopupSizeDimension{Unit: UnitPixels, Value: v} }

// Percent returns a percentage dimension.
func Percent(v float64) PopupSizeDimension { return PopupSizeDimension{Unit: UnitPercent, Value: v} }

func (d PopupSizeDimension) String() string {
	return fmt.Sprintf("%g%s", d.Value, d.Unit)
}

type dimensionRange struct {
	min, max float64
}

// Inclusive bounds per unit, enforced by the popupWidth and popupHeight definitions.
var (
	widthRanges = map[PopupSizeUnit]dimensionRange{
		UnitPixels:  {min: 200, max: 2000},
		UnitPercent: {min: 10, max: 100},
	}
	heightRanges = map[PopupSizeUnit]dimensionRange{
		UnitPixels:  {min: 150, max: 1500},
		UnitPercent: {min: 10, max: 100},
	}
)
