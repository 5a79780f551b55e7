package hanconv

import "math"

// Stats counts characters seen and changed by script conversion.
type Stats struct {
	TotalChars   int `json:"total_chars" yaml:"total_chars"`
	ChangedChars int `json:"changed_chars" yaml:"changed_chars"`
	// Approximate is set when at least one compared pair differed in length,
	// in which case ChangedChars is a positional lower bound.
	Approximate bool `json:"approximate,omitempty" yaml:"approximate,omitempty"`
}

// Add returns the sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		TotalChars:   s.TotalChars + o.TotalChars,
		ChangedChars: s.ChangedChars + o.ChangedChars,
		Approximate:  s.Approximate || o.Approximate,
	}
}

// ChangeRate is the percentage of changed characters rounded to two decimals.
func (s Stats) ChangeRate() float64 {
	if s.TotalChars == 0 {
		return 0
	}
	rate := float64(s.ChangedChars) / float64(s.TotalChars) * 100
	return math.Round(rate*100) / 100
}

// ComputeStats compares before and after position by position. Total is the
// rune length of before; positions beyond the shorter string are not counted.
func ComputeStats(before, after string) Stats {
	if before == "" || after == "" {
		return Stats{}
	}
	a := []rune(before)
	b := []rune(after)

	st := Stats{TotalChars: len(a), Approximate: len(a) != len(b)}
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			st.ChangedChars++
		}
	}
	return st
}
