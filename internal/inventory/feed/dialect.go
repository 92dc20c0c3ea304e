package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

// Dialect describes how a feed separates its fields.
type Dialect struct {
	Delimiter rune
}

// DefaultDialect is used whenever sniffing cannot decide.
var DefaultDialect = Dialect{Delimiter: ','}

// ErrUndecidable is returned by a Sniffer that found no candidate splitting the sample.
var ErrUndecidable = errors.New("could not determine feed delimiter")

// Sniffer guesses the dialect of a feed from its first bytes.
type Sniffer interface {
	Sniff(sample []byte) (Dialect, error)
}

// ScoringSniffer tries each candidate delimiter over the first Lines records and
// keeps the one whose records most consistently match the header's field count.
// Ties go to the earlier candidate.
type ScoringSniffer struct {
	Candidates []rune
	Lines      int
}

// NewSniffer returns the sniffer used for product feeds: comma or semicolon.
func NewSniffer() ScoringSniffer {
	return ScoringSniffer{Candidates: []rune{',', ';'}, Lines: 20}
}

func (s ScoringSniffer) Sniff(sample []byte) (Dialect, error) {
	best, bestScore := DefaultDialect, 0
	for _, delim := range s.Candidates {
		if score := s.score(sample, delim); score > bestScore {
			best, bestScore = Dialect{Delimiter: delim}, score
		}
	}
	if bestScore == 0 {
		return DefaultDialect, ErrUndecidable
	}
	return best, nil
}

// score counts the records agreeing with the header width, weighted by that
// width. A delimiter that leaves the header whole scores zero.
func (s ScoringSniffer) score(sample []byte, delim rune) int {
	r := csv.NewReader(bytes.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil || len(header) < 2 {
		return 0
	}

	width := len(header)
	consistent := 1
	for i := 1; i < s.Lines; i++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A truncated sample can end mid-record.
			break
		}
		if len(rec) == width {
			consistent++
		}
	}
	return consistent * width
}
