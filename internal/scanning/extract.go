package scanning

import (
	"regexp"
	"strings"
)

// PageBreak joins per-page OCR text when a multi-page capture is combined
// into one document for extraction.
const PageBreak = "\n---PAGE BREAK---\n"

// Fields contains the best-guess values extracted from raw invoice text.
// An empty string means the field was not found.
type Fields struct {
	Vendor string `json:"vendor"`
	Date   string `json:"date"`
	Total  string `json:"total"`
}

// totalRules are evaluated in fixed order and the first submatch of the
// first rule that fires wins. The labeled form ("TOTAL: 45.67") outranks a
// bare amount trailed by a currency marker ("45.67 USD").
var totalRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:TOTAL|Amount|Balance)[^\d]*(\d+[.,]\d{2})`),
	regexp.MustCompile(`(?i)(\d+[.,]\d{2})\s*(?:USD|Rs|INR|\$)`),
}

// dateRule matches D/M/Y-style and Y/M/D-style dates with /, - or .
// separators. No calendrical validation; "99/99/9999" matches.
var dateRule = regexp.MustCompile(`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})|(\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2})`)

// ExtractFields derives vendor, date and total from raw OCR text. It is
// pure and deterministic; the worst case is an all-empty result.
//
// The vendor is the first trimmed line longer than two characters, which on
// a typical invoice is the business name printed at the top.
func ExtractFields(text string) Fields {
	var f Fields

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 2 {
			f.Vendor = line
			break
		}
	}

	for _, rule := range totalRules {
		if m := rule.FindStringSubmatch(text); m != nil {
			f.Total = m[1]
			break
		}
	}

	f.Date = dateRule.FindString(text)

	return f
}
