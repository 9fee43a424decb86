package features

import (
	"math"
	"sort"
)

const minGap = 1e-6

type interval struct {
	start, end float64
}

// placeSegments assigns every segment its [Start, End). A lone segment
// spans the whole duration. Otherwise explicitly timed segments keep their
// ranges and the rest tile the uncovered time, in reading order.
// When explicit ranges leave no time uncovered, untimed segments are
// appended after the end and the returned total grows to fit them.
func placeSegments(segments []Segment, total float64) ([]Segment, float64) {
	if len(segments) == 0 {
		return []Segment{{Index: 0, Start: 0, End: total}}, total
	}
	if len(segments) == 1 {
		seg := segments[0]
		seg.Start, seg.End = 0, total
		return []Segment{seg}, total
	}

	out := make([]Segment, len(segments))
	copy(out, segments)
	timed := make([]bool, len(out))

	for i := range out {
		r := out[i].Range
		if r == nil {
			continue
		}
		switch r.Kind {
		case RangeAbsolute:
			start := math.Max(0, r.Start)
			end := math.Min(total, r.End)
			if end-start > minGap {
				out[i].Start, out[i].End = start, end
				timed[i] = true
			}
		case RangeFromEnd:
			out[i].Start, out[i].End = math.Max(0, total-r.Length), total
			timed[i] = true
		}
	}
	// Open ranges run until the next explicit start.
	for i := range out {
		r := out[i].Range
		if r == nil || r.Kind != RangeOpen || r.Start >= total {
			continue
		}
		end := total
		for j := range out {
			if timed[j] && out[j].Start > r.Start && out[j].Start < end {
				end = out[j].Start
			}
		}
		out[i].Start, out[i].End = r.Start, end
		timed[i] = true
	}

	var untimed []int
	var covered []interval
	for i := range out {
		if timed[i] {
			covered = append(covered, interval{out[i].Start, out[i].End})
		} else {
			untimed = append(untimed, i)
		}
	}
	if len(untimed) == 0 {
		return out, total
	}

	gaps := complement(covered, total)
	space := 0.0
	for _, g := range gaps {
		space += g.end - g.start
	}
	if space <= minGap {
		share := total / float64(len(out))
		cursor := total
		for _, i := range untimed {
			out[i].Start, out[i].End = cursor, cursor+share
			cursor += share
		}
		return out, cursor
	}

	fillGaps(out, timed, untimed, gaps)
	return out, total
}

// fillGaps tiles the uncovered time with the untimed segments. A segment
// goes to the first gap after the timed segment preceding it in reading
// order. An empty gap borrows one segment from its nearest neighbor holding
// two or more, and each gap is shared evenly by its segments. A gap no
// segment can fill is absorbed by the timed segment bordering it.
func fillGaps(out []Segment, timed []bool, untimed []int, gaps []interval) {
	groups := make([][]int, len(gaps))
	for _, i := range untimed {
		g := preferredGap(out, timed, i, gaps)
		groups[g] = append(groups[g], i)
	}
	for g := range groups {
		if len(groups[g]) > 0 {
			continue
		}
		donor := nearestCrowded(groups, g)
		switch {
		case donor < 0:
		case donor < g:
			n := len(groups[donor])
			groups[g] = []int{groups[donor][n-1]}
			groups[donor] = groups[donor][:n-1]
		default:
			groups[g] = []int{groups[donor][0]}
			groups[donor] = groups[donor][1:]
		}
	}

	for g, members := range groups {
		gap := gaps[g]
		if len(members) == 0 {
			absorbGap(out, timed, gap)
			continue
		}
		share := (gap.end - gap.start) / float64(len(members))
		for n, i := range members {
			out[i].Start = gap.start + float64(n)*share
			out[i].End = gap.start + float64(n+1)*share
		}
		out[members[len(members)-1]].End = gap.end
	}
}

func preferredGap(out []Segment, timed []bool, i int, gaps []interval) int {
	after := math.Inf(-1)
	for j := i - 1; j >= 0; j-- {
		if timed[j] {
			after = out[j].End
			break
		}
	}
	for g, gap := range gaps {
		if gap.start >= after-minGap {
			return g
		}
	}
	return len(gaps) - 1
}

func nearestCrowded(groups [][]int, g int) int {
	for d := 1; d < len(groups); d++ {
		if l := g - d; l >= 0 && len(groups[l]) > 1 {
			return l
		}
		if r := g + d; r < len(groups) && len(groups[r]) > 1 {
			return r
		}
	}
	return -1
}

// absorbGap stretches the timed segment ending where gap starts, or the one
// starting where it ends when the gap opens the timeline.
func absorbGap(out []Segment, timed []bool, gap interval) {
	for i := range out {
		if timed[i] && math.Abs(out[i].End-gap.start) <= minGap {
			out[i].End = gap.end
			return
		}
	}
	for i := range out {
		if timed[i] && math.Abs(out[i].Start-gap.end) <= minGap {
			out[i].Start = gap.start
			return
		}
	}
}

// complement returns the uncovered parts of [0, total) in time order.
func complement(covered []interval, total float64) []interval {
	sort.Slice(covered, func(i, j int) bool { return covered[i].start < covered[j].start })
	var gaps []interval
	cursor := 0.0
	for _, c := range covered {
		if c.start-cursor > minGap {
			gaps = append(gaps, interval{cursor, c.start})
		}
		cursor = math.Max(cursor, c.end)
	}
	if total-cursor > minGap {
		gaps = append(gaps, interval{cursor, total})
	}
	return gaps
}
