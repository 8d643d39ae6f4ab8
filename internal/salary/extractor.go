// internal/salary/extractor.go
package salary

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"loan-pipeline/internal/models"
)

// ErrNotFound is returned when no heuristic produces any candidate.
// Callers must not treat it the same as a low-confidence estimate.
var ErrNotFound = errors.New("SALARY_NOT_FOUND")

// Heuristic identifiers, in priority order.
const (
	HeuristicKeywordLine      = "keyword_line"
	HeuristicKeywordProximity = "keyword_proximity"
	HeuristicAnnualToMonthly  = "annual_to_monthly"
	HeuristicLargestNumber    = "largest_number"
)

// Heuristic weights. Confidence is the winning aggregated weight normalized
// by the sum of all weights, so a single-heuristic match never reads as 1.0.
var heuristicWeights = map[string]int{
	HeuristicKeywordLine:      3,
	HeuristicKeywordProximity: 2,
	HeuristicAnnualToMonthly:  2,
	HeuristicLargestNumber:    1,
}

var heuristicPriority = map[string]int{
	HeuristicKeywordLine:      0,
	HeuristicKeywordProximity: 1,
	HeuristicAnnualToMonthly:  2,
	HeuristicLargestNumber:    3,
}

// salaryKeywords anchor the keyword heuristics. Order matters only for
// readability; all keywords carry the same weight.
var salaryKeywords = []string{
	"gross monthly salary",
	"monthly salary",
	"net pay",
	"take-home pay",
	"take home pay",
	"salary for the month",
	"total earnings",
	"basic pay",
	"gross salary",
}

var annualMarkers = []string{"per annum", "annual", "p.a."}

// amountPattern tolerates currency prefixes, thousands separators and
// decimals as they appear in OCR output.
var amountPattern = regexp.MustCompile(`(?:₹|INR|Rs\.?)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// Candidate amounts within this relative tolerance are treated as the same
// value to absorb OCR digit noise.
const mergeTolerance = 0.01

// Amounts outside this minor-unit range are treated as OCR noise
// (page numbers, account digits) rather than salary candidates.
const (
	minPlausibleMinor = 10000         // 100.00
	maxPlausibleMinor = 1000000000000 // 10,000,000,000.00
)

type candidate struct {
	amountMinor int64
	heuristic   string
}

type group struct {
	amountMinor   int64
	weight        int
	heuristic     string // highest-priority contributor
	contributions map[string]bool
}

// Extract converts raw OCR text into a scored salary estimate. It is
// deterministic for identical input and never fails for malformed text;
// the worst case is ErrNotFound.
func Extract(rawText string) (*models.SalaryEstimate, error) {
	lines := strings.Split(rawText, "\n")

	candidates := collectKeywordLine(lines)
	candidates = append(candidates, collectKeywordProximity(lines)...)
	candidates = append(candidates, collectAnnualToMonthly(lines)...)
	candidates = append(candidates, collectLargestNumber(lines)...)

	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	groups := aggregate(candidates)

	best := groups[0]
	for _, g := range groups[1:] {
		if g.weight > best.weight {
			best = g
			continue
		}
		if g.weight == best.weight && heuristicPriority[g.heuristic] < heuristicPriority[best.heuristic] {
			best = g
		}
	}

	maxWeight := 0
	for _, w := range heuristicWeights {
		maxWeight += w
	}

	return &models.SalaryEstimate{
		Amount:          best.amountMinor,
		Confidence:      float64(best.weight) / float64(maxWeight),
		SourceHeuristic: best.heuristic,
	}, nil
}

func collectKeywordLine(lines []string) []candidate {
	var out []candidate
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, salaryKeywords) {
			continue
		}
		if amount, ok := firstAmount(line); ok {
			out = append(out, candidate{amountMinor: amount, heuristic: HeuristicKeywordLine})
		}
	}
	return out
}

// collectKeywordProximity catches layouts where the label and the figure are
// split across adjacent lines.
func collectKeywordProximity(lines []string) []candidate {
	var out []candidate
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, salaryKeywords) {
			continue
		}
		if _, ok := firstAmount(line); ok {
			continue // same-line match already handled at higher priority
		}
		for j := i + 1; j < len(lines) && j <= i+2; j++ {
			if amount, ok := firstAmount(lines[j]); ok {
				out = append(out, candidate{amountMinor: amount, heuristic: HeuristicKeywordProximity})
				break
			}
		}
	}
	return out
}

func collectAnnualToMonthly(lines []string) []candidate {
	var out []candidate
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, annualMarkers) {
			continue
		}
		if annual, ok := firstAmount(line); ok {
			monthly := annual / 12
			if plausible(monthly) {
				out = append(out, candidate{amountMinor: monthly, heuristic: HeuristicAnnualToMonthly})
			}
		}
	}
	return out
}

func collectLargestNumber(lines []string) []candidate {
	var largest int64
	found := false
	for _, line := range lines {
		for _, amount := range allAmounts(line) {
			if amount > largest {
				largest = amount
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return []candidate{{amountMinor: largest, heuristic: HeuristicLargestNumber}}
}

// aggregate merges candidates within the relative tolerance, summing each
// heuristic's weight at most once per merged group.
func aggregate(candidates []candidate) []*group {
	var groups []*group
	for _, c := range candidates {
		var target *group
		for _, g := range groups {
			if withinTolerance(g.amountMinor, c.amountMinor) {
				target = g
				break
			}
		}
		if target == nil {
			target = &group{
				amountMinor:   c.amountMinor,
				heuristic:     c.heuristic,
				contributions: make(map[string]bool),
			}
			groups = append(groups, target)
		}
		if target.contributions[c.heuristic] {
			continue
		}
		target.contributions[c.heuristic] = true
		target.weight += heuristicWeights[c.heuristic]
		if heuristicPriority[c.heuristic] < heuristicPriority[target.heuristic] {
			// Representative amount follows the highest-priority contributor.
			target.heuristic = c.heuristic
			target.amountMinor = c.amountMinor
		}
	}
	return groups
}

func withinTolerance(a, b int64) bool {
	if a == b {
		return true
	}
	larger := a
	if b > larger {
		larger = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(larger) <= mergeTolerance
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func firstAmount(line string) (int64, bool) {
	for _, amount := range allAmounts(line) {
		return amount, true
	}
	return 0, false
}

func allAmounts(line string) []int64 {
	var out []int64
	for _, match := range amountPattern.FindAllStringSubmatch(line, -1) {
		if amount, ok := parseAmountMinor(match[1]); ok {
			out = append(out, amount)
		}
	}
	return out
}

// parseAmountMinor converts a formatted figure into minor units.
func parseAmountMinor(raw string) (int64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	minor := d.Mul(decimal.NewFromInt(100)).IntPart()
	if !plausible(minor) {
		return 0, false
	}
	return minor, true
}

func plausible(minor int64) bool {
	return minor >= minPlausibleMinor && minor <= maxPlausibleMinor
}
