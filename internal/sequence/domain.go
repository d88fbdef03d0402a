package sequence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DocumentSequence holds the numbering state for one document type. The
// counter resets when the fiscal year rolls over and only the sequencer
// mutates it, always through a single atomic statement.
type DocumentSequence struct {
	DocumentType  string
	Prefix        string
	CurrentNumber int64
	FiscalYear    int
	FormatPattern string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultFormatPattern is applied to lazily created sequences.
const DefaultFormatPattern = "{prefix}-{year}-{number:06d}"

var (
	// ErrNotConfigured indicates the sequence row is missing and could not
	// be created. Callers must not fall back to ad hoc numbering.
	ErrNotConfigured = errors.New("sequence: document sequence not configured")
)

var numberToken = regexp.MustCompile(`\{number(?::0(\d+)d)?\}`)

// Format renders a document number from the pattern. Supported tokens:
// {prefix}, {year}, {number} and {number:0Nd} for zero padding to N digits.
func Format(pattern, prefix string, year int, number int64) string {
	out := strings.ReplaceAll(pattern, "{prefix}", prefix)
	out = strings.ReplaceAll(out, "{year}", strconv.Itoa(year))
	out = numberToken.ReplaceAllStringFunc(out, func(token string) string {
		match := numberToken.FindStringSubmatch(token)
		if match[1] == "" {
			return strconv.FormatInt(number, 10)
		}
		width, _ := strconv.Atoi(match[1])
		return fmt.Sprintf("%0*d", width, number)
	})
	return out
}
