package features

// DefaultDuration is the total length used when the brief states none.
const DefaultDuration = 30.0

// RangeKind distinguishes how a segment's explicit timing was phrased.
type RangeKind int

const (
	// RangeAbsolute is a closed span such as "0-5 seconds" or "first 5 seconds".
	RangeAbsolute RangeKind = iota
	// RangeFromEnd is "last N seconds"; Length counts back from the end.
	RangeFromEnd
	// RangeOpen is "from second N"; it runs to the next timed segment or the end.
	RangeOpen
)

// TimeRange is explicit timing stated inside a sentence.
type TimeRange struct {
	Kind   RangeKind
	Start  float64
	End    float64
	Length float64
}

// Segment is one sentence of the brief with its resolved placement.
type Segment struct {
	Index    int
	Text     string
	Range    *TimeRange
	Start    float64
	End      float64
	Effects  []string
	Subtitle bool
	Position string
	// EffectDuration is nil when the sentence states no effect duration.
	EffectDuration Duration
}

// Length returns the resolved segment length.
func (s Segment) Length() float64 {
	return s.End - s.Start
}

// HasEffect reports whether the segment requested the given filter id.
func (s Segment) HasEffect(id string) bool {
	for _, e := range s.Effects {
		if e == id {
			return true
		}
	}
	return false
}

// Features is everything the builder needs from a brief.
type Features struct {
	Text           string
	Duration       float64
	DurationStated bool
	Segments       []Segment
	Rhythm         Rhythm
	Theme          *ColorTheme
	Style          string
	Transition     string
	Music          bool
}

// Subtitles reports whether any segment asked for on-screen text.
func (f Features) Subtitles() bool {
	for _, s := range f.Segments {
		if s.Subtitle {
			return true
		}
	}
	return false
}
