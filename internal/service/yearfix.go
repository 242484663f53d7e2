package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/itinerary/internal/domain"
)

// DefaultStaleYears are years the extraction model tends to hallucinate
// when a document omits the year.
var DefaultStaleYears = []int{2022, 2023, 2024}

var (
	isoDate  = regexp.MustCompile(`^(\d{4})(-\d{2}-\d{2}.*)$`)
	yearWord = regexp.MustCompile(`\b(20\d{2})\b`)
)

// YearCorrector rewrites stale years in extracted dates.
type YearCorrector struct {
	stale map[int]bool
	now   func() time.Time
}

// NewYearCorrector builds a corrector for the given stale years. A nil now
// uses time.Now.
func NewYearCorrector(stale []int, now func() time.Time) YearCorrector {
	if now == nil {
		now = time.Now
	}
	set := make(map[int]bool, len(stale))
	for _, y := range stale {
		set[y] = true
	}
	return YearCorrector{stale: set, now: now}
}

// TargetYear returns the smallest year between this year and three years
// ahead that appears in text, or this year when none does.
func (c YearCorrector) TargetYear(text string) int {
	current := c.now().Year()
	best := 0
	for _, m := range yearWord.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil || y < current || y > current+3 {
			continue
		}
		if best == 0 || y < best {
			best = y
		}
	}
	if best == 0 {
		return current
	}
	return best
}

// Fix rewrites every date field of p whose year is stale and reports
// whether anything changed. p is modified in place.
func (c YearCorrector) Fix(p domain.Payload, text string) bool {
	if len(c.stale) == 0 {
		return false
	}
	target := 0
	changed := false
	for k, v := range p {
		if !strings.HasPrefix(k, "fecha") {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		m := isoDate.FindStringSubmatch(strings.TrimSpace(s))
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		if !c.stale[year] {
			continue
		}
		if target == 0 {
			target = c.TargetYear(text)
		}
		p[k] = strconv.Itoa(target) + m[2]
		changed = true
	}
	return changed
}
