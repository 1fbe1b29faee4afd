// Package classify detects the implementation language and problem
// domain of a ticket by deterministic keyword scoring. It is a rule
// table, not a model: identical text always yields identical results.
package classify

import (
	"strings"

	"github.com/drossen/ticketsmith/pkg/types"
)

// LanguageUnknown and DomainGeneral are the fallbacks when no marker
// matches.
const (
	LanguageUnknown = "unknown"
	DomainGeneral   = "general"
)

// markerSet pairs a label with the substrings that vote for it.
// Evaluation order is declaration order; on a tie the earlier entry
// wins, so the tables below double as the priority ordering.
type markerSet struct {
	label   string
	markers []string
}

var languageTable = []markerSet{
	{"python", []string{"python", "django", "flask", "fastapi", "pandas", "numpy", ".py", "pip install", "pytest"}},
	{"javascript", []string{"javascript", "js", "react", "node.js", "npm", "typescript", ".js", ".ts", "yarn"}},
	{"java", []string{"java", "spring", "spring boot", "maven", "gradle", ".java", "jvm", "junit"}},
	{"php", []string{"php", "laravel", "symfony", "composer", ".php", "phpunit"}},
	{"csharp", []string{"c#", "csharp", ".net", "asp.net", "visual studio", ".cs", "nuget"}},
	{"ruby", []string{"ruby", "rails", "gem install", ".rb", "bundler"}},
	{"go", []string{"golang", "go lang", ".go", "go mod"}},
	{"rust", []string{"rust", "cargo", ".rs", "rustc"}},
	{"swift", []string{"swift", "ios", "xcode", ".swift", "cocoapods"}},
	{"kotlin", []string{"kotlin", "android", ".kt", "gradle"}},
	{"scala", []string{"scala", ".scala", "sbt"}},
	{"r", []string{"r lang", ".r", "rstudio", "cran"}},
	{"sql", []string{"sql", "mysql", "postgresql", "sqlite", "database"}},
}

var domainTable = []markerSet{
	{"web-frontend", []string{"frontend", "ui", "dashboard", "css", "html", "component", "user experience"}},
	{"web-backend", []string{"backend", "api", "rest", "http", "endpoint", "microservice", "graphql"}},
	{"mobile", []string{"mobile", "ios", "android", "react native", "flutter"}},
	{"data-science", []string{"data", "analytics", "machine learning", "ml", "ai", "statistics"}},
	{"devops", []string{"docker", "kubernetes", "aws", "azure", "gcp", "ci/cd", "deployment"}},
	{"testing", []string{"test", "testing", "qa", "unit test", "integration test", "automation"}},
	{"security", []string{"security", "auth", "authentication", "encryption", "vulnerability"}},
	{"database", []string{"database", "db", "sql", "nosql", "mongodb", "redis"}},
	{"ui-ux", []string{"design", "ux", "figma", "wireframe", "mockup", "user interface"}},
	{"game-development", []string{"game", "unity", "unreal", "gamedev"}},
	{"blockchain", []string{"blockchain", "crypto", "smart contract", "web3"}},
}

// Detect scores text against the language and domain tables. The two
// classifications are independent. Confidence belongs to the winning
// language and is the fraction of its markers present, clamped to [0,1].
func Detect(text string) types.Classification {
	lower := strings.ToLower(text)

	language, langScore, langTotal := best(lower, languageTable)
	domain, _, _ := best(lower, domainTable)

	c := types.Classification{
		Language: LanguageUnknown,
		Domain:   DomainGeneral,
	}
	if langScore > 0 {
		c.Language = language
		c.Confidence = clamp(float64(langScore) / float64(langTotal))
	}
	if domain != "" {
		c.Domain = domain
	}
	return c
}

// best returns the highest-scoring label, its score, and the size of
// its marker set. Ties keep the earlier entry. A zero score returns
// an empty label.
func best(lower string, table []markerSet) (string, int, int) {
	var (
		winner string
		score  int
		total  int
	)
	for _, set := range table {
		n := 0
		for _, m := range set.markers {
			if strings.Contains(lower, m) {
				n++
			}
		}
		if n > score {
			winner = set.label
			score = n
			total = len(set.markers)
		}
	}
	return winner, score, total
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
