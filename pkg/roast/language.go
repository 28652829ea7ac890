package roast

import "regexp"

// LanguageUnknown is returned when no pattern matches.
const LanguageUnknown = "unknown"

type languagePatterns struct {
	name     string
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?m)` + e)
	}
	return out
}

// Order matters: ties go to the earlier language.
var languages = []languagePatterns{
	{"python", compileAll(`\bdef\s+\w+\s*\(`, `\bimport\s+\w+`, `:\s*$`, `\bself\b`, `print\s*\(`, `if\s+__name__`)},
	{"javascript", compileAll(`\bfunction\s+\w+`, `\bconst\s+\w+`, `\blet\s+\w+`, `=>`, `console\.log`, `\brequire\(`)},
	{"typescript", compileAll(`:\s*(string|number|boolean|any)\b`, `\binterface\s+\w+`, `<[A-Z]\w*>`, `\bas\s+\w+`, `\w+\s*:\s*\w+\s*[;,)]`, `\)\s*:\s*\w+\s*=>`)},
	{"java", compileAll(`\bpublic\s+(static\s+)?class\b`, `System\.out`, `\bvoid\s+\w+`, `@Override`)},
	{"csharp", compileAll(`\bnamespace\s+\w+`, `\busing\s+System`, `\bvar\s+\w+\s*=`, `\basync\s+Task`)},
	{"go", compileAll(`\bfunc\s+\w+`, `\bpackage\s+\w+`, `:=`, `\bfmt\.\w+`, `\bgo\s+\w+`)},
	{"rust", compileAll(`\bfn\s+\w+`, `\blet\s+mut\b`, `\bimpl\s+\w+`, `->`, `\bpub\s+(fn|struct)`)},
	{"ruby", compileAll(`\bdef\s+\w+`, `\bend\s*$`, `\bputs\b`, `\brequire\s+`, `\battr_\w+`)},
	{"php", compileAll(`<\?php`, `\$\w+`, `\becho\b`, `\bfunction\s+\w+`, `->`)},
	{"html", compileAll(`<(!DOCTYPE|html|div|span|body|head)\b`, `class="`, `<script`)},
	{"css", compileAll(`\{[^}]*:\s*\w+;`, `\.([\w-]+)\s*\{`, `@media`, `#[\w-]+\s*\{`)},
	{"sql", compileAll(`\b(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)\b`, `\bFROM\b.*\bWHERE\b`)},
	{"bash", compileAll(`^#!/bin/(bash|sh)`, `\becho\b`, `\bif\s+\[`, `\bfi\b`, `\besac\b`)},
	{"c", compileAll(`#include\s*<\w+\.h>`, `\bint\s+main\s*\(`, `printf\s*\(`, `\bmalloc\s*\(`)},
	{"cpp", compileAll(`#include\s*<\w+>`, `\bstd::`, `\bcout\b`, `\bclass\s+\w+\s*[:{]`, `\btemplate\s*<`)},
	{"swift", compileAll(`\bfunc\s+\w+`, `\bvar\s+\w+\s*:`, `\bguard\s+let\b`, `\bimport\s+Foundation`)},
	{"kotlin", compileAll(`\bfun\s+\w+`, `\bval\s+\w+`, `\bvar\s+\w+`, `\bwhen\s*\(`)},
}

// DetectLanguage guesses the language of code by counting matching patterns
// per language. TypeScript absorbs the JavaScript score when both match.
func DetectLanguage(code string) string {
	scores := make(map[string]int, len(languages))
	for _, lang := range languages {
		n := 0
		for _, p := range lang.patterns {
			if p.MatchString(code) {
				n++
			}
		}
		if n > 0 {
			scores[lang.name] = n
		}
	}

	if len(scores) == 0 {
		return LanguageUnknown
	}

	if ts, ok := scores["typescript"]; ok {
		if js, ok := scores["javascript"]; ok {
			scores["typescript"] = ts + js
		}
	}

	best, bestScore := LanguageUnknown, 0
	for _, lang := range languages {
		if s := scores[lang.name]; s > bestScore {
			best, bestScore = lang.name, s
		}
	}
	return best
}
