// Package extract pulls age and height entities out of free-text Vietnamese
// user messages.
//
// Every extractor walks a fixed, ordered pattern table. The order is part of
// the contract: for ages the first pattern that matches decides the result,
// for heights matches are collected pattern by pattern.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Age bounds accepted by Age.
const (
	MinAge = 0
	MaxAge = 150
)

// wordStart anchors a Vietnamese word; \b is ASCII-only in RE2.
const wordStart = `(?:^|[^\p{L}\p{N}])`

var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*tuổi`),
	regexp.MustCompile(wordStart + `tôi\s+(\d+)`),
	regexp.MustCompile(wordStart + `mình\s+(\d+)`),
	regexp.MustCompile(wordStart + `em\s+(\d+)`),
}

// heightUnit follows digits that belong to a height, not an age.
var heightUnit = regexp.MustCompile(`^(?:\s*cm|m\d|[.,]\d+\s*m)`)

type heightPattern struct {
	re   *regexp.Regexp
	toCM func(groups []string) (string, bool)
}

var heightPatterns = []heightPattern{
	{re: regexp.MustCompile(`(\d{2,3})\s*cm`), toCM: centimetres},        // 160cm, 160 cm
	{re: regexp.MustCompile(`(\d)m(\d{2})`), toCM: metresAndCentimetres}, // 1m70
	{re: regexp.MustCompile(`(\d\.\d{2})\s*m`), toCM: decimalMetres},     // 1.70 m
}

var targetPatterns = []heightPattern{
	{re: regexp.MustCompile(wordStart + `(?:muốn|mong|ước)\s+(?:được\s+)?cao\s+(\d)m(\d{2})`), toCM: metresAndCentimetres},
	{re: regexp.MustCompile(wordStart + `(?:muốn|mong|ước)\s+(?:được\s+)?cao\s+(\d{2,3})`), toCM: centimetres},
	{re: regexp.MustCompile(wordStart + `mục\s+tiêu\s+(?:là\s+)?(\d{2,3})`), toCM: centimetres},
	{re: regexp.MustCompile(wordStart + `muốn\s+(\d{2,3})\s*cm`), toCM: centimetres},
}

// Entities is the result of running every extractor over one message.
type Entities struct {
	Age          *int
	Heights      []string
	TargetHeight string
}

// CurrentHeight returns the first height that is not the stated target.
func (e Entities) CurrentHeight() string {
	for _, h := range e.Heights {
		if h != e.TargetHeight {
			return h
		}
	}
	return ""
}

// Empty reports whether nothing was extracted.
func (e Entities) Empty() bool {
	return e.Age == nil && len(e.Heights) == 0 && e.TargetHeight == ""
}

// Extract runs the age, height and target-height extractors.
func Extract(text string) Entities {
	var e Entities
	if age, ok := Age(text); ok {
		e.Age = &age
	}
	e.Heights = Heights(text)
	if target, ok := TargetHeight(text); ok {
		e.TargetHeight = target
	}
	return e
}

// Age returns the age stated in text. The first pattern that matches decides;
// a lexical match outside [MinAge, MaxAge] yields no age. Digits followed by a
// height unit ("160 cm", "1m65") are never an age.
func Age(text string) (int, bool) {
	s := Normalize(text)
	for _, re := range agePatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
			if heightUnit.MatchString(s[loc[3]:]) {
				continue
			}
			n, err := strconv.Atoi(s[loc[2]:loc[3]])
			if err != nil || n < MinAge || n > MaxAge {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// Heights returns every height mentioned in text, in centimetres. Matches are
// ordered by pattern first and by position second.
func Heights(text string) []string {
	s := Normalize(text)
	var out []string
	for _, p := range heightPatterns {
		for _, m := range p.re.FindAllStringSubmatch(s, -1) {
			if cm, ok := p.toCM(m[1:]); ok {
				out = append(out, cm)
			}
		}
	}
	return out
}

// TargetHeight returns the desired height phrased as "muốn cao 175", "mục tiêu 175"
// and similar.
func TargetHeight(text string) (string, bool) {
	s := Normalize(text)
	for _, p := range targetPatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		return p.toCM(m[1:])
	}
	return "", false
}

// Normalize composes combining marks so precomposed patterns match text typed
// with decomposed Vietnamese diacritics.
func Normalize(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}

func centimetres(g []string) (string, bool) {
	n, err := strconv.Atoi(g[0])
	if err != nil {
		return "", false
	}
	return strconv.Itoa(n), true
}

func metresAndCentimetres(g []string) (string, bool) {
	m, err := strconv.Atoi(g[0])
	if err != nil {
		return "", false
	}
	cm, err := strconv.Atoi(g[1])
	if err != nil {
		return "", false
	}
	return strconv.Itoa(m*100 + cm), true
}

func decimalMetres(g []string) (string, bool) {
	f, err := strconv.ParseFloat(g[0], 64)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(int(f*100 + 0.5)), true
}
