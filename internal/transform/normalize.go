// Package transform implements §4.3 normalization: deriving norm.* fields
// from source.* without mutating source.* itself.
package transform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	punctuationNoise = regexp.MustCompile(`[^\w\s&/.,'-]`)
)

// Normalize runs over every row in fr, writing norm.* fields derived from
// source.*. Rows not yet touched by a later stage are left otherwise
// untouched. It works in place and returns nothing, since normalization owns
// a disjoint namespace from every earlier stage.
func Normalize(fr *frame.Frame) {
	for _, r := range fr.Rows {
		normalizeRow(r)
	}
}

func normalizeRow(r *frame.Row) {
	title := cleanText(r.GetString("source.title"))
	company := cleanText(r.GetString("source.company"))
	r.Set("norm.title", title)
	r.Set("norm.company", company)

	city, state, location := parseLocation(r.GetString("source.location_raw"))
	r.Set("norm.city", city)
	r.Set("norm.state", state)
	r.Set("norm.location", location)

	r.Set("norm.description", stripHTML(r.GetString("source.description_raw")))

	min, max, unit, currency, display, ok := parseSalary(r.GetString("source.salary_raw"))
	if ok {
		r.Set("norm.salary_min", min)
		r.Set("norm.salary_max", max)
		r.Set("norm.salary_unit", unit)
		r.Set("norm.salary_currency", currency)
		r.Set("norm.salary_display", display)
	}
}

// cleanText trims, collapses whitespace, and strips punctuation noise while
// preserving casing, per §4.3's norm.title/norm.company derivation.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = punctuationNoise.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// parseLocation handles "City, ST" and free-text single-token locations.
func parseLocation(raw string) (city, state, location string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ""
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) == 2 {
		city = strings.TrimSpace(parts[0])
		state = strings.TrimSpace(parts[1])
		return city, state, city + ", " + state
	}
	return raw, "", raw
}

// stripHTML parses raw as an HTML fragment and returns collapsed text
// content, using the same goquery-based extraction idiom the crawler package
// uses for page content.
func stripHTML(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return whitespaceRun.ReplaceAllString(raw, " ")
	}
	doc.Find("script, style").Remove()
	text := doc.Text()
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

var (
	salaryRangeRe = regexp.MustCompile(`\$?([\d,]+(?:\.\d+)?)\s*(?:-|to)\s*\$?([\d,]+(?:\.\d+)?)`)
	salarySingleRe = regexp.MustCompile(`\$?([\d,]+(?:\.\d+)?)`)
	salaryUnitRe   = regexp.MustCompile(`(?i)per\s*(hour|day|week|month|year)|(hourly|daily|weekly|monthly|annual|yearly)`)
)

// parseSalary is a pure regex/string parser; no corpus library specializes
// in salary-string parsing (see DESIGN.md).
func parseSalary(raw string) (min, max float64, unit, currency, display string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, "", "", "", false
	}

	currency = "USD"
	unit = inferSalaryUnit(raw)

	if m := salaryRangeRe.FindStringSubmatch(raw); m != nil {
		min = parseMoney(m[1])
		max = parseMoney(m[2])
		return min, max, unit, currency, raw, true
	}
	if m := salarySingleRe.FindStringSubmatch(raw); m != nil {
		v := parseMoney(m[1])
		return v, v, unit, currency, raw, true
	}
	return 0, 0, "", "", "", false
}

func inferSalaryUnit(raw string) string {
	m := salaryUnitRe.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return "year"
	}
	switch {
	case m[1] != "":
		return m[1]
	case strings.HasPrefix(m[2], "hour"):
		return "hour"
	case strings.HasPrefix(m[2], "dai"):
		return "day"
	case strings.HasPrefix(m[2], "week"):
		return "week"
	case strings.HasPrefix(m[2], "month"):
		return "month"
	default:
		return "year"
	}
}

func parseMoney(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
