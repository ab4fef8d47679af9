// Package scroll tracks which lines of a byte stream are on screen.
package scroll

// Scroller maps a cursor line onto a window of visible lines. It never
// touches the bytes themselves.
type Scroller struct {
	first        uint64
	last         uint64
	total        uint64
	visible      uint64
	active       uint64
	bytesPerLine uint64
}

// New returns a Scroller for totalBytes split into lines of bytesPerLine.
// Call AdjustLines before using the window.
func New(totalBytes, bytesPerLine uint64) *Scroller {
	if bytesPerLine == 0 {
		bytesPerLine = 1
	}
	total := totalBytes / bytesPerLine
	if totalBytes%bytesPerLine != 0 {
		total++
	}
	return &Scroller{total: total, bytesPerLine: bytesPerLine}
}

// AdjustLines fits a window of visibleLines around currentLine. The window
// sits on a page boundary unless that would run past the end of the stream,
// in which case it ends on the last line instead.
func (s *Scroller) AdjustLines(visibleLines, currentLine uint64) {
	if s.total == 0 {
		s.first, s.last, s.visible, s.active = 0, 0, 0, 0
		return
	}
	visibleLines = max(min(visibleLines, s.total), 1)
	currentLine = min(currentLine, s.total-1)

	s.visible = visibleLines
	if currentLine+visibleLines > s.total {
		s.first = s.total - visibleLines
	} else {
		s.first = currentLine / visibleLines * visibleLines
	}
	s.last = s.first + visibleLines - 1
	s.active = currentLine - s.first
}

// MoveDown moves the active line one down. It reports true when the window
// shifted instead, which means every visible line changed.
func (s *Scroller) MoveDown() bool {
	if s.visible == 0 {
		return false
	}
	if s.active < s.visible-1 {
		s.active++
		return false
	}
	if s.last+1 < s.total {
		s.first++
		s.last++
		return true
	}
	return false
}

// MoveUp is the mirror of MoveDown.
func (s *Scroller) MoveUp() bool {
	if s.active > 0 {
		s.active--
		return false
	}
	if s.first > 0 {
		s.first--
		s.last--
		return true
	}
	return false
}

// First and Last are absolute line numbers, both inclusive.
func (s *Scroller) First() uint64 { return s.first }
func (s *Scroller) Last() uint64  { return s.last }

func (s *Scroller) Total() uint64   { return s.total }
func (s *Scroller) Visible() uint64 { return s.visible }

// Active is the cursor line relative to First.
func (s *Scroller) Active() uint64 { return s.active }

// Current is the absolute cursor line.
func (s *Scroller) Current() uint64 { return s.first + s.active }

func (s *Scroller) BytesPerLine() uint64 { return s.bytesPerLine }
