package research

import (
	_ "embed"
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// SentimentWindow is how many of the most recent headlines are scored.
const SentimentWindow = 20

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon holds the keyword sets used to score headlines.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

type lexiconFile struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// DefaultLexicon returns the built-in keyword lists.
func DefaultLexicon() *Lexicon {
	lx, err := ParseLexicon(defaultLexicon)
	if err != nil {
		panic("research: embedded lexicon: " + err.Error())
	}
	return lx
}

// LoadLexicon reads a YAML keyword file; an empty path returns the default.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "research: read lexicon %s", path)
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes a YAML document with positive and negative lists.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "research: parse lexicon")
	}
	if len(f.Positive) == 0 && len(f.Negative) == 0 {
		return nil, eris.New("research: lexicon has no keywords")
	}
	fold := cases.Fold()
	return &Lexicon{
		positive: keywordSet(fold, f.Positive),
		negative: keywordSet(fold, f.Negative),
	}, nil
}

func keywordSet(fold cases.Caser, words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(fold.String(w))
		if w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}

// SentimentCounts is the keyword scan result. A headline may count as both
// positive and negative; neutral ones match neither list.
type SentimentCounts struct {
	Positive int
	Negative int
	Neutral  int
	Scored   int
}

// Score scans at most SentimentWindow headlines.
func (lx *Lexicon) Score(headlines []string) SentimentCounts {
	if len(headlines) > SentimentWindow {
		headlines = headlines[:SentimentWindow]
	}
	// Casers carry state and are not shared between goroutines.
	fold := cases.Fold()

	var c SentimentCounts
	for _, h := range headlines {
		pos, neg := false, false
		for _, tok := range strings.FieldsFunc(fold.String(h), notWordRune) {
			if _, ok := lx.positive[tok]; ok {
				pos = true
			}
			if _, ok := lx.negative[tok]; ok {
				neg = true
			}
		}
		if pos {
			c.Positive++
		}
		if neg {
			c.Negative++
		}
		if !pos && !neg {
			c.Neutral++
		}
		c.Scored++
	}
	return c
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
