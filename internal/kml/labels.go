package kml

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ktimacloud/report-engine/internal/template"
)

// labelAliases maps normalized label spellings onto the geo-field
// vocabulary. Greek aliases cover the cadastral sources the engine ingests.
var labelAliases = map[string]template.GeoField{
	"municipality": template.GeoMunicipality,
	"δημοσ":        template.GeoMunicipality,
	"κοινοτητα":    template.GeoMunicipality,

	"plot number":       template.GeoPlotNumber,
	"plot no":           template.GeoPlotNumber,
	"plot":              template.GeoPlotNumber,
	"parcel":            template.GeoPlotNumber,
	"αριθμοσ οικοπεδου": template.GeoPlotNumber,
	"αριθμοσ τεμαχιου":  template.GeoPlotNumber,
	"αριθμοσ αγροτεμαχιου": template.GeoPlotNumber,

	"plot area": template.GeoPlotArea,
	"area":      template.GeoPlotArea,
	"εμβαδον":   template.GeoPlotArea,
	"επιφανεια": template.GeoPlotArea,

	"coordinates":   template.GeoCoordinates,
	"συντεταγμενεσ": template.GeoCoordinates,

	"sheet plan":    template.GeoSheetPlan,
	"sheet":         template.GeoSheetPlan,
	"φυλλο σχεδιου": template.GeoSheetPlan,
	"φυλλο χαρτη":   template.GeoSheetPlan,

	"registration number": template.GeoRegistrationNumber,
	"reg number":          template.GeoRegistrationNumber,
	"kaek":                template.GeoRegistrationNumber,
	"καεκ":                template.GeoRegistrationNumber,
	"αριθμοσ καταχωρησησ": template.GeoRegistrationNumber,

	"property type":  template.GeoPropertyType,
	"ειδοσ ακινητου": template.GeoPropertyType,
	"τυποσ ακινητου": template.GeoPropertyType,

	"zone": template.GeoZone,
	"ζωνη": template.GeoZone,

	"zone description": template.GeoZoneDescription,
	"περιγραφη ζωνησ":  template.GeoZoneDescription,
	"χαρακτηρασ ζωνησ": template.GeoZoneDescription,

	"building coefficient": template.GeoBuildingCoefficient,
	"συντελεστησ δομησησ":  template.GeoBuildingCoefficient,

	"coverage":            template.GeoCoverage,
	"coverage ratio":      template.GeoCoverage,
	"καλυψη":              template.GeoCoverage,
	"συντελεστησ καλυψησ": template.GeoCoverage,

	"floors": template.GeoFloors,
	"οροφοι": template.GeoFloors,

	"height": template.GeoHeight,
	"υψοσ":   template.GeoHeight,

	"value 2018": template.GeoValue2018,
	"2018 value": template.GeoValue2018,
	"αξια 2018":  template.GeoValue2018,

	"value 2021": template.GeoValue2021,
	"2021 value": template.GeoValue2021,
	"αξια 2021":  template.GeoValue2021,
}

// foldTransformer strips diacritics: decompose, drop combining marks,
// recompose. Greek cadastral labels arrive both accented and plain.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// matchLabel resolves a raw label against the vocabulary. Matching is
// case-insensitive and tolerant of surrounding whitespace, punctuation and
// diacritics. Field identifiers themselves (e.g. "plot_number") also match.
func matchLabel(raw string) (template.GeoField, bool) {
	normalized := normalizeLabel(raw)
	if normalized == "" {
		return "", false
	}
	if field, ok := labelAliases[normalized]; ok {
		return field, true
	}
	if field, ok := template.ParseGeoField(strings.ReplaceAll(normalized, " ", "_")); ok {
		return field, true
	}
	return "", false
}

// normalizeLabel lowercases, strips diacritics and punctuation, and
// collapses interior whitespace.
func normalizeLabel(raw string) string {
	folded, _, err := transform.String(foldTransformer, raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(folded)
	// Go lowercasing is context-free, so unify final and medial sigma.
	folded = strings.ReplaceAll(folded, "ς", "σ")

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '_' || r == ' ' || r == '\t':
			b.WriteRune(' ')
		case r == '.' || r == ':' || r == '-' || r == '–' || r == '(' || r == ')' || r == '\'':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
