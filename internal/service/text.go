package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxRepoNameLength = 90

var (
	nonSlugRun  = regexp.MustCompile(`[^a-z0-9]+`)
	nonAlnumRun = regexp.MustCompile(`[^A-Za-z0-9\s]+`)
	romanNumber = regexp.MustCompile(`(?i)^[IVXLCDM]+$`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	trailingNum = regexp.MustCompile(`\d+$`)
)

// StripDiacritics removes combining marks after NFD decomposition, so "ñ"
// becomes "n" and "é" becomes "e". Letters without a decomposition are kept.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify turns s into a GitHub-safe repository name: lowercase ASCII
// letters and digits separated by single hyphens, at most 90 characters.
// fallback is used when nothing survives.
func Slugify(s, fallback string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(StripDiacritics(s)), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxRepoNameLength {
		slug = strings.TrimRight(slug[:maxRepoNameLength], "-")
	}
	if slug == "" {
		return fallback
	}
	return slug
}

// RepoName builds the repository name of a project from its subject code and
// title.
func RepoName(subjectCode, title, projectID string) string {
	base := strings.Trim(strings.TrimSpace(subjectCode)+"-"+strings.TrimSpace(title), "-")
	return Slugify(base, "proyecto-"+projectID)
}

func foldName(s string) string {
	return strings.TrimSpace(strings.ToLower(StripDiacritics(s)))
}

// InstitutionalEmail derives the address of a teacher, student or director:
//
//	<prefix>.<all given names joined>.<first surname>.<first two letters of second surname>@<domain>
//
// Empty parts are skipped.
func InstitutionalEmail(prefix, firstName, lastName, domain string) string {
	names := strings.Join(strings.Fields(foldName(firstName)), "")
	surnames := strings.Fields(foldName(lastName))

	var first, second string
	if len(surnames) > 0 {
		first = surnames[0]
	}
	if len(surnames) > 1 {
		second = surnames[1]
		if r := []rune(second); len(r) > 2 {
			second = string(r[:2])
		}
	}

	var parts []string
	for _, p := range []string{prefix, names, first, second} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".") + "@" + domain
}

var abbreviationStopwords = map[string]bool{"de": true, "del": true, "la": true, "el": true, "y": true}

// Abbreviation takes the first three letters of the last significant word of
// name, uppercased: "Ingeniería de Sistemas" is "SIS". Empty input yields "GEN".
func Abbreviation(name string) string {
	var words []string
	for _, w := range strings.Fields(foldName(name)) {
		if !abbreviationStopwords[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "GEN"
	}
	return strings.ToUpper(firstRunes(words[len(words)-1], 3))
}

var codeStopwords = map[string]bool{
	"a": true, "al": true, "con": true, "de": true, "del": true, "el": true, "la": true,
	"las": true, "los": true, "en": true, "para": true, "por": true, "sin": true,
	"y": true, "e": true, "o": true, "u": true, "un": true, "una": true, "uno": true,
	"unos": true, "unas": true, "the": true, "and": true, "of": true,
}

// SubjectCode derives the base code of a subject name. Connectors, roman
// numerals and numbers are ignored, so "Redes II" is "RED",
// "Sistemas de Control" is "SCO" and "Teoría de la Computación Avanzada" is
// "TCA". CatalogService appends a numeric suffix when the code is taken.
func SubjectCode(name string) string {
	raw := strings.TrimSpace(nonAlnumRun.ReplaceAllString(StripDiacritics(name), " "))
	if raw == "" {
		return ""
	}

	var sig []string
	for _, w := range strings.Fields(raw) {
		if codeStopwords[strings.ToLower(w)] || romanNumber.MatchString(w) || digitsOnly.MatchString(w) {
			continue
		}
		sig = append(sig, strings.ToUpper(w))
	}

	switch len(sig) {
	case 0:
		if code := firstRunes(strings.ToUpper(strings.Join(strings.Fields(raw), "")), 3); code != "" {
			return code
		}
		return "MAT"
	case 1:
		return firstRunes(sig[0], 3)
	case 2:
		return firstRunes(sig[0], 1) + firstRunes(sig[1], 2)
	default:
		return firstRunes(sig[0], 1) + firstRunes(sig[1], 1) + firstRunes(sig[2], 1)
	}
}

// codeBase strips the uniqueness suffix from a stored code.
func codeBase(code string) string {
	return trailingNum.ReplaceAllString(code, "")
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
