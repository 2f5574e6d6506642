package dashboard

import "strings"

// sparklineChars are the 8 Unicode block levels used to render a sparkline,
// lowest to highest.
var sparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a fixed-width ring buffer of samples rendered as a row of
// Unicode block characters, scaled against the buffer's own running max.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
	max     float64
}

// NewSparkline creates a sparkline holding up to width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{samples: make([]float64, width), width: width}
}

// Add appends a sample, overwriting the oldest once the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++

	if value > s.max {
		s.max = value
	}
	if s.count%s.width == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the sparkline as a string of block characters, oldest
// sample first.
func (s *Sparkline) Render() string {
	if s.count == 0 {
		return strings.Repeat(string(sparklineChars[0]), s.width)
	}
	if s.max <= 0 {
		s.recalculateMax()
	}

	var sb strings.Builder
	sb.Grow(s.width * 3)

	numSamples := min(s.count, s.width)
	start := 0
	if s.count >= s.width {
		start = s.head
	}

	for i := 0; i < s.width; i++ {
		idx := (start + i) % s.width
		value := s.samples[idx]

		var charIdx int
		if s.max > 0 {
			scaled := value / s.max
			charIdx = int(scaled * float64(len(sparklineChars)-1))
			if charIdx < 0 {
				charIdx = 0
			}
			if charIdx >= len(sparklineChars) {
				charIdx = len(sparklineChars) - 1
			}
		}

		if i >= numSamples && s.count < s.width {
			sb.WriteRune(' ')
		} else {
			sb.WriteRune(sparklineChars[charIdx])
		}
	}

	return sb.String()
}

// Count returns the number of samples added so far.
func (s *Sparkline) Count() int {
	return s.count
}
