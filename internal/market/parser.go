package market

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

// Question patterns seen on weather markets. Order matters: the comparison
// forms are tried before the bare "be N" form, which would otherwise match
// their prefixes.
var (
	reHigher = regexp.MustCompile(`(?i)highest temperature in (.+?)\s+be\s+(-?\d+).*?(?:higher|above|greater)`)
	reLower  = regexp.MustCompile(`(?i)highest temperature in (.+?)\s+be\s+(-?\d+).*?(?:below|lower|less)`)
	reRange  = regexp.MustCompile(`(?i)highest temperature in (.+?)\s+be\s+between\s+(-?\d+)\s*-\s*(-?\d+)`)
	reExact  = regexp.MustCompile(`(?i)highest temperature in (.+?)\s+be\s+(-?\d+)\s*°?[FC]?\s*(?:on|\?|$)`)
	reDate   = regexp.MustCompile(`on ([A-Z][a-z]+ \d{1,2})`)
	reRainIn = regexp.MustCompile(`in ([A-Z][a-z\s]+?)\s*(?:on|\?|$)`)
)

// parsedQuestion is the structured reading of a market question. City is
// lowercased; Date is YYYY-MM-DD.
type parsedQuestion struct {
	City          string
	Variable      models.Variable
	Operator      models.Operator
	Threshold     float64
	ThresholdHigh float64
	Unit          string // "F", "C", or "" when the question names no unit
}

// detectUnit finds an explicit temperature unit in the question, if any.
func detectUnit(question string) string {
	q := strings.ToLower(question)
	if strings.Contains(q, "°c") || strings.Contains(q, "celsius") {
		return "C"
	}
	if strings.Contains(q, "°f") || strings.Contains(q, "fahrenheit") {
		return "F"
	}
	return ""
}

// parseQuestion extracts (city, variable, operator, thresholds, date) from a
// market question. The second return is the event date; ok is false when the
// question is not a recognizable weather market.
func parseQuestion(question string, now time.Time) (parsedQuestion, string, bool) {
	q := strings.ReplaceAll(question, "–", "-")

	p := parsedQuestion{Unit: detectUnit(q)}

	// An exact-value question ("be 75 on ...") prices a one-degree band
	// centered on the value.
	switch {
	case reRange.MatchString(q):
		m := reRange.FindStringSubmatch(q)
		lo, _ := strconv.ParseFloat(m[2], 64)
		hi, _ := strconv.ParseFloat(m[3], 64)
		p.City = normalizeCity(m[1])
		p.Variable = models.VarMaxTemperature
		p.Operator = models.OpBetween
		p.Threshold, p.ThresholdHigh = lo, hi
	case reHigher.MatchString(q):
		m := reHigher.FindStringSubmatch(q)
		p.City = normalizeCity(m[1])
		p.Variable = models.VarMaxTemperature
		p.Operator = models.OpGreater
		p.Threshold, _ = strconv.ParseFloat(m[2], 64)
	case reLower.MatchString(q):
		m := reLower.FindStringSubmatch(q)
		p.City = normalizeCity(m[1])
		p.Variable = models.VarMaxTemperature
		p.Operator = models.OpLess
		p.Threshold, _ = strconv.ParseFloat(m[2], 64)
	case reExact.MatchString(q):
		m := reExact.FindStringSubmatch(q)
		v, _ := strconv.ParseFloat(m[2], 64)
		p.City = normalizeCity(m[1])
		p.Variable = models.VarMaxTemperature
		p.Operator = models.OpBetween
		p.Threshold, p.ThresholdHigh = v-0.5, v+0.5
	case strings.Contains(strings.ToLower(q), "rain") || strings.Contains(strings.ToLower(q), "precipitation"):
		m := reRainIn.FindStringSubmatch(question)
		if m == nil {
			return parsedQuestion{}, "", false
		}
		p.City = normalizeCity(m[1])
		p.Variable = models.VarPrecipitation
		p.Operator = models.OpGreater
		p.Threshold = 0.5 // mm; anything measurable counts as rain
	default:
		return parsedQuestion{}, "", false
	}

	date, ok := parseEventDate(question, now)
	if !ok {
		return parsedQuestion{}, "", false
	}
	return p, date, true
}

// parseEventDate reads "on January 29" style dates, assuming the current
// year. Weather markets settle within days, so the assumption only breaks
// across the year boundary; a December scan of a January market resolves to
// the past and is dropped by the date filter anyway.
func parseEventDate(question string, now time.Time) (string, bool) {
	m := reDate.FindStringSubmatch(question)
	if m == nil {
		return "", false
	}
	dt, err := time.Parse("January 2 2006", m[1]+" "+strconv.Itoa(now.Year()))
	if err != nil {
		return "", false
	}
	return dt.Format("2006-01-02"), true
}

func normalizeCity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
