// Package routetype implements §4.7's deterministic Local/OTR/Unknown
// derivation, ported keyword-for-keyword and priority-for-priority from
// the original RouteClassifier.classify_route_type.
package routetype

import (
	"regexp"
	"strings"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

var localKeywords = []string{
	"home daily", "daily home time", "day cab", "local", "shuttle driver",
	"bus driver", "school bus", "paratransit", "dump truck", "yard driver",
	"yard hostler", "ready mix", "sanitation", "garbage collection", "waste",
	"port driver", "drayage", "container hauling", "roll-off", "belly dump",
	"student transport", "pupil transport", "isd", "airport shuttle", "airport",
	"construction", "concrete", "mixer", "home every night", "home nightly",
	"monday-friday", "monday through friday", "specific daily schedule",
}

var otrKeywords = []string{
	"otr", "over the road", "regional", "home weekly", "home bi-weekly",
	"home every week", "home every 2 weeks", "home time", "lower 48 states",
	"nationwide", "coast to coast", "mileage pay", "cpm", "per mile",
	"paid by the mile", "team driver", "rider policy", "pet policy",
	"pets allowed", "fridge", "inverter", "sleeper cab", "long haul",
	"cross country", "48 states", "weeks out", "away from home", "on the road",
}

var knownOTRCarriers = []string{
	"crst", "stevens", "swift", "prime inc", "jb hunt", "schneider",
	"werner", "covenant", "marten",
}

var (
	hourlyPayRe  = regexp.MustCompile(`\$\d+\.?\d*\s*/\s*hour|\$\d+\.?\d*\s*per\s*hour|\$\d+\.?\d*\s*hr`)
	mileagePayRe = regexp.MustCompile(`\$\d+\.?\d*\s*cpm|per mile|\$/mile|\$\.\d+\s*per\s*mile`)
	weeklyPayRe  = regexp.MustCompile(`\$\d+,?\d*\s*-?\s*\$?\d+,?\d*\s*/?\s*week`)
)

// Apply sets ai.route_type on every row in fr from norm.title,
// norm.description, and norm.company, using rules only (no LLM).
func Apply(fr *frame.Frame) {
	for _, r := range fr.Rows {
		r.Set("ai.route_type", Classify(r.GetString("norm.title"), r.GetString("norm.description"), r.GetString("norm.company")))
	}
}

// Classify implements the exact priority ordering of the original
// RouteClassifier: title override → yard/hostler → local title/airport →
// pay-pattern → team/lower-48/long-home-time → OTR keyword set → local
// keyword set → Unknown.
func Classify(title, description, company string) string {
	combined := strings.ToLower(title + " " + description)
	companyText := strings.ToLower(company)
	titleText := strings.ToLower(title)

	localMatches := containsAny(combined, localKeywords)
	otrMatches := containsAny(combined, otrKeywords)

	petRiderMatch := strings.Contains(combined, "pet") && strings.Contains(combined, "rider")
	teamDriverMatch := strings.Contains(combined, "team driver")
	lower48Match := strings.Contains(combined, "lower 48 states")
	regionalMatch := strings.Contains(combined, "regional") && !strings.Contains(combined, "home daily")
	longHomeTimeMatch := strings.Contains(combined, "home every 12 days") || strings.Contains(combined, "out 12 days")
	knownOTRCarrier := containsAny(companyText, knownOTRCarriers)
	yardDriverMatch := strings.Contains(combined, "yard driver") || strings.Contains(combined, "yard hostler")

	hourlyPayMatch := hourlyPayRe.MatchString(combined)
	mileagePayMatch := mileagePayRe.MatchString(combined)
	weeklyPayMatch := weeklyPayRe.MatchString(combined)

	localTitleMatch := strings.Contains(titleText, "local") && !strings.Contains(titleText, "otr")
	airportTitleMatch := strings.Contains(titleText, "airport") || strings.Contains(titleText, "shuttle")
	otrTitleMatch := strings.Contains(titleText, "otr") || strings.Contains(titleText, "over the road")

	switch {
	case otrTitleMatch:
		return schema.RouteOTR
	case yardDriverMatch:
		return schema.RouteLocal
	case localTitleMatch || airportTitleMatch:
		return schema.RouteLocal
	case hourlyPayMatch && !otrMatches:
		return schema.RouteLocal
	case teamDriverMatch || lower48Match || regionalMatch || longHomeTimeMatch:
		return schema.RouteOTR
	case (mileagePayMatch || weeklyPayMatch) && !localMatches:
		return schema.RouteOTR
	case knownOTRCarrier && !localMatches:
		return schema.RouteOTR
	case otrMatches || petRiderMatch:
		if !localMatches {
			return schema.RouteOTR
		}
		return schema.RouteUnknown
	case localMatches:
		return schema.RouteLocal
	default:
		return schema.RouteUnknown
	}
}

func containsAny(haystack string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(haystack, k) {
			return true
		}
	}
	return false
}
