package models

import "math"

// TemporalProfile is a pair of edit-count histograms: day-of-week
// (0=Sunday) and hour-of-day. Bucket values only increase.
type TemporalProfile struct {
	Days  [7]int  `json:"days"`
	Hours [24]int `json:"hours"`
}

type TemporalAxis int

const (
	AxisDay TemporalAxis = iota
	AxisHour
)

// Overlap is the result of comparing two users on one temporal axis.
type Overlap struct {
	CosSim float64 `json:"cos-sim"`
	Level  string  `json:"level"`
}

// Record credits an edit at (day, hour) to the profile, smearing it across
// the configured hour offsets so near-miss timing between correlated
// accounts still overlaps. Each offset shifts the hour and rolls the
// day-of-week across midnight boundaries.
func (p *TemporalProfile) Record(day, hour, count int, offsets []int) {
	for _, off := range offsets {
		h := hour + off
		d := wrap(day+floorDiv(h, 24), 7)
		p.Days[d] += count
		p.Hours[wrap(h, 24)] += count
	}
}

// Add merges another profile into this one bucket-wise.
func (p *TemporalProfile) Add(other *TemporalProfile) {
	for i, v := range other.Days {
		p.Days[i] += v
	}
	for i, v := range other.Hours {
		p.Hours[i] += v
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func wrap(a, m int) int {
	return ((a % m) + m) % m
}

// TemporalSimilarity compares two profiles on the given axis. A nil profile
// counts as all-zero; the 0/0 cosine case is defined as score 0.
func TemporalSimilarity(a, b *TemporalProfile, axis TemporalAxis) Overlap {
	var va, vb []int
	switch axis {
	case AxisDay:
		if a != nil {
			va = a.Days[:]
		}
		if b != nil {
			vb = b.Days[:]
		}
	default:
		if a != nil {
			va = a.Hours[:]
		}
		if b != nil {
			vb = b.Hours[:]
		}
	}
	score := cosineSimilarity(va, vb)
	return Overlap{CosSim: score, Level: overlapLevel(score)}
}

func cosineSimilarity(a, b []int) float64 {
	var dot, na, nb float64
	for i := range a {
		var x, y float64
		x = float64(a[i])
		if i < len(b) {
			y = float64(b[i])
		}
		dot += x * y
		na += x * x
		nb += y * y
	}
	for i := len(a); i < len(b); i++ {
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	// Taking the sqrt of the product keeps identical or proportional
	// vectors at exactly 1 (sqrt of a perfect square of dot). The clamp
	// covers any residual rounding above 1.
	return math.Min(dot/math.Sqrt(na*nb), 1)
}

// overlapLevel maps a cosine similarity score to a qualitative label.
// Thresholds are exclusive except the exact-match case.
func overlapLevel(score float64) string {
	switch {
	case score == 1:
		return "Same"
	case score > 0.8:
		return "High"
	case score > 0.5:
		return "Medium"
	case score > 0:
		return "Low"
	default:
		return "No overlap"
	}
}
