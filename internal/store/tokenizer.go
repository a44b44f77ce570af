package store

import (
	"regexp"
	"strings"
	"unicode"
)

// identifierRegex matches alphanumeric runs, including underscores, so
// snake_case identifiers survive the first split.
var identifierRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeCode splits source text into index terms with code-aware rules:
// camelCase/PascalCase and snake_case identifiers are split on their word
// boundaries, and — per the sparse-index tokenization contract — both the
// whole identifier and its split parts are kept as separate terms, so a
// query for "getUserById" matches documents indexed under "getuserbyid"
// as well as "get"/"user"/"by"/"id". All terms are lowercased; terms
// shorter than two characters are dropped.
func TokenizeCode(text string) []string {
	var tokens []string

	for _, word := range identifierRegex.FindAllString(text, -1) {
		whole := strings.ToLower(word)
		if len(whole) >= 2 {
			tokens = append(tokens, whole)
		}

		for _, part := range SplitIdentifier(word) {
			lower := strings.ToLower(part)
			if lower == whole || len(lower) < 2 {
				continue
			}
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// SplitIdentifier splits a snake_case and/or camelCase identifier into its
// constituent words.
func SplitIdentifier(token string) []string {
	var result []string

	if strings.Contains(token, "_") {
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}

	return splitCamelCase(token)
}

// splitCamelCase splits camelCase and PascalCase identifiers, treating
// runs of uppercase letters as acronyms.
//
//	getUserById     -> get, User, By, Id
//	HTTPHandler     -> HTTP, Handler
//	parseHTTPRequest -> parse, HTTP, Request
func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// FilterStopWords removes stop words from a term list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a stop word slice into a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
