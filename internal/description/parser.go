// Package description extracts installment, event and edition metadata from
// the free-text descriptions the gateway stores on each charge.
package description

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the structured reading of one description. Zero installment
// fields mean the value could not be extracted.
type Parsed struct {
	Raw               string
	IsInstallment     bool
	InstallmentNumber int
	TotalInstallments int
	EventMatch        bool
	Year              int
}

type installmentShape struct {
	re       *regexp.Regexp
	extract  func(m []string) (number, total int)
	notAfter *regexp.Regexp // rejects a match when the text before it matches
}

// Shapes are tried in order; the first one yielding a plausible match wins.
var installmentShapes = []installmentShape{
	{
		// "Parcela 2 de 3", "parcela 02 de 10"
		re:      regexp.MustCompile(`(?i)parcela\s+(\d{1,3})\s+de\s+(\d{1,3})`),
		extract: numberAndTotal,
	},
	{
		// "2/3" not part of a date like 10/05/2025, nor a due day like "venc. 05/10"
		re:       regexp.MustCompile(`(?:^|[^\d/])(\d{1,2})\s*/\s*(\d{1,2})(?:$|[^\d/])`),
		extract:  numberAndTotal,
		notAfter: regexp.MustCompile(`(?i)(?:venc\.?|vencimento|vence|data|dia|at[eé]|em|pago)\s*:?\s*$`),
	},
	{
		// "2ª parcela", "2a parcela"
		re:      regexp.MustCompile(`(?i)(?:^|\D)(\d{1,3})\s*(?:ª|a|º|o)?\s+parcela`),
		extract: func(m []string) (int, int) {
			return atoi(m[1]), 0
		},
	},
	{
		// "em 3x", "3 x sem juros"
		re:      regexp.MustCompile(`(?i)(?:^|[^\w])(\d{1,2})\s*x(?:$|[^\w])`),
		extract: func(m []string) (int, int) {
			return 0, atoi(m[1])
		},
	},
}

var yearPattern = regexp.MustCompile(`(?:^|\D)(202[4-6])(?:$|\D)`)

// Parser recognises descriptions belonging to one event.
type Parser struct {
	eventName string
}

func NewParser(eventName string) *Parser {
	return &Parser{eventName: strings.ToLower(strings.TrimSpace(eventName))}
}

// Parse never fails; an unrecognised description yields a zero record.
func (p *Parser) Parse(description string) Parsed {
	parsed := Parsed{Raw: description}
	if description == "" {
		return parsed
	}

	for _, shape := range installmentShapes {
		if number, total, ok := shape.match(description); ok {
			parsed.IsInstallment = true
			parsed.InstallmentNumber = number
			parsed.TotalInstallments = total
			break
		}
	}

	if p.eventName != "" {
		parsed.EventMatch = strings.Contains(strings.ToLower(description), p.eventName)
	}

	if m := yearPattern.FindStringSubmatch(description); m != nil {
		parsed.Year = atoi(m[1])
	}

	return parsed
}

// MatchesEvent is a shortcut for Parse(description).EventMatch.
func (p *Parser) MatchesEvent(description string) bool {
	return p.eventName != "" && strings.Contains(strings.ToLower(description), p.eventName)
}

// match returns the first plausible occurrence of the shape in description.
func (s installmentShape) match(description string) (int, int, bool) {
	for _, loc := range s.re.FindAllStringSubmatchIndex(description, -1) {
		if s.notAfter != nil && s.notAfter.MatchString(description[:loc[2]]) {
			continue
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = description[loc[2*i]:loc[2*i+1]]
			}
		}
		number, total := s.extract(m)
		if plausible(number, total) {
			return number, total, true
		}
	}
	return 0, 0, false
}

func numberAndTotal(m []string) (int, int) {
	number, total := atoi(m[1]), atoi(m[2])
	if number == 0 || total == 0 {
		return 0, 0
	}
	return number, total
}

func plausible(number, total int) bool {
	if number == 0 && total == 0 {
		return false
	}
	if total > 0 && number > total {
		return false
	}
	return true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
