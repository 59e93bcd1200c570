package stream

import (
	"fmt"
	"strings"

	streamline "github.com/eugener/streamline/internal"
)

// lineSplitter cuts decoded text on '\n'. The tail after the last newline
// is carried into the next Push so that lines spanning chunks come out whole.
type lineSplitter struct {
	partial strings.Builder
	max     int
}

func newLineSplitter(maxSize int) *lineSplitter {
	return &lineSplitter{max: maxSize}
}

// Push appends text and returns the non-blank lines it completes, in order.
// On ErrLineTooLong the lines completed before the oversized one are still returned.
func (s *lineSplitter) Push(text string) ([]string, error) {
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		if s.partial.Len()+i > s.max {
			return lines, s.tooLong()
		}
		line := text[:i]
		if s.partial.Len() > 0 {
			s.partial.WriteString(line)
			line = s.partial.String()
			s.partial.Reset()
		}
		if !blank(line) {
			lines = append(lines, line)
		}
		text = text[i+1:]
	}
	if s.partial.Len()+len(text) > s.max {
		return lines, s.tooLong()
	}
	s.partial.WriteString(text)
	return lines, nil
}

// Flush returns the unterminated tail, if it is not blank.
func (s *lineSplitter) Flush() (string, bool) {
	line := s.partial.String()
	s.partial.Reset()
	return line, !blank(line)
}

func (s *lineSplitter) tooLong() error {
	return fmt.Errorf("%w: exceeds %d bytes", streamline.ErrLineTooLong, s.max)
}

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}
