package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/models"
)

// Parser parses plain-text rule lists.
//
// One rule per line: a hostname pattern followed by a cleanup type,
// separated by whitespace or a comma. Lines starting with "!", "#" or "[" are comments.
//
//	! keep my mail
//	*.mail.example.com never
//	tracker.example.net, instantly
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Rules       int
	Comments    int
	Skipped     int
	SkipReasons map[string]int // Detailed breakdown of skipped lines
}

// SkipReason constants
const (
	SkipMissingType    = "missing-type"
	SkipUnknownType    = "unknown-type"
	SkipInvalidPattern = "invalid-pattern"
	SkipTrailingFields = "trailing-fields"
)

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped line with reason
func (p *Parser) skip(reason string) {
	p.stats.Skipped++
	p.stats.SkipReasons[reason]++
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads rule list content and returns the rules in file order
func (p *Parser) Parse(r io.Reader) ([]models.Rule, error) {
	var rules []models.Rule
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.stats.Total++

		if isComment(line) {
			p.stats.Comments++
			continue
		}

		rule, reason := parseLine(line)
		if reason != "" {
			p.skip(reason)
			continue
		}

		p.stats.Rules++
		rules = append(rules, rule)
	}

	return rules, scanner.Err()
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "!") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[")
}

// parseLine parses a single rule line, returning a skip reason on failure
func parseLine(line string) (models.Rule, string) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	switch {
	case len(fields) < 2:
		return models.Rule{}, SkipMissingType
	case len(fields) > 2:
		return models.Rule{}, SkipTrailingFields
	}

	ct, err := models.ParseCleanupType(fields[1])
	if err != nil {
		return models.Rule{}, SkipUnknownType
	}

	rule := models.Rule{Pattern: models.NormalizeHostname(fields[0]), Type: ct}
	if rule.Validate() != nil {
		return models.Rule{}, SkipInvalidPattern
	}
	return rule, ""
}
