package template

// GeoField identifies one of the fixed vocabulary of geospatial/cadastral
// attributes extractable from an annotation file. The vocabulary is a closed,
// versioned contract: adding a field is additive, removing one is breaking.
type GeoField string

const (
	GeoMunicipality        GeoField = "municipality"
	GeoPlotNumber          GeoField = "plot_number"
	GeoPlotArea            GeoField = "plot_area"
	GeoCoordinates         GeoField = "coordinates"
	GeoSheetPlan           GeoField = "sheet_plan"
	GeoRegistrationNumber  GeoField = "registration_number"
	GeoPropertyType        GeoField = "property_type"
	GeoZone                GeoField = "zone"
	GeoZoneDescription     GeoField = "zone_description"
	GeoBuildingCoefficient GeoField = "building_coefficient"
	GeoCoverage            GeoField = "coverage"
	GeoFloors              GeoField = "floors"
	GeoHeight              GeoField = "height"
	GeoValue2018           GeoField = "value_2018"
	GeoValue2021           GeoField = "value_2021"
)

// AllGeoFields returns the full geo-field vocabulary in declaration order.
func AllGeoFields() []GeoField {
	return []GeoField{
		GeoMunicipality,
		GeoPlotNumber,
		GeoPlotArea,
		GeoCoordinates,
		GeoSheetPlan,
		GeoRegistrationNumber,
		GeoPropertyType,
		GeoZone,
		GeoZoneDescription,
		GeoBuildingCoefficient,
		GeoCoverage,
		GeoFloors,
		GeoHeight,
		GeoValue2018,
		GeoValue2021,
	}
}

// ParseGeoField maps a raw identifier onto the vocabulary.
func ParseGeoField(s string) (GeoField, bool) {
	for _, f := range AllGeoFields() {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
