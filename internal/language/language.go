package language

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Unknown is the tag assigned when no language could be determined.
const Unknown = "und"

// contentSample bounds how much text is handed to the content detector.
const contentSample = 1000

// filenameCodes lists the two-letter codes recognized inside filenames.
var filenameCodes = map[string]struct{}{
	"EN": {}, "DE": {}, "FR": {}, "NL": {}, "ES": {}, "IT": {}, "PT": {}, "PL": {},
	"RU": {}, "JA": {}, "ZH": {}, "KO": {}, "AR": {}, "HE": {}, "TR": {}, "CS": {},
	"SK": {}, "HU": {}, "RO": {}, "BG": {}, "HR": {}, "SL": {}, "SR": {}, "UK": {},
	"DA": {}, "NO": {}, "SV": {}, "FI": {}, "EL": {}, "TH": {}, "VI": {}, "ID": {},
	"MS": {}, "TL": {},
}

var (
	codeAtEnd      = regexp.MustCompile(`[_\-]([A-Z]{2})$`)
	codeBracketed  = regexp.MustCompile(`[(\[]([A-Z]{2})[)\]]`)
	codeDelimited  = regexp.MustCompile(`[_\-]([A-Z]{2})[_\-]`)
	leadingLocale  = regexp.MustCompile(`(?i)^([a-z]{2}-[a-z]{2})-?\s*_`)
	separatorRun   = regexp.MustCompile(`[\s_\-]{2,}`)
	dashUnderscore = regexp.MustCompile(`-+_`)
	codeInside     *regexp.Regexp
	codeTrailing   *regexp.Regexp
)

func init() {
	codes := make([]string, 0, len(filenameCodes))
	for code := range filenameCodes {
		codes = append(codes, code)
	}
	alternation := strings.Join(codes, "|")
	codeInside = regexp.MustCompile(`(?i)[_\-(\[](` + alternation + `)[_\-)\]]`)
	codeTrailing = regexp.MustCompile(`(?i)[\s_\-]+(` + alternation + `)[\s_\-]*$`)
}

func stem(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FromFilename returns the canonical tag encoded in a filename, or "" when
// the name carries no recognizable language marker.
func FromFilename(name string) string {
	s := stem(name)
	if match := leadingLocale.FindStringSubmatch(s); match != nil {
		if tag := Canonical(match[1]); tag != Unknown {
			return tag
		}
	}
	upper := strings.ToUpper(s)
	for _, pattern := range []*regexp.Regexp{codeAtEnd, codeBracketed, codeDelimited} {
		match := pattern.FindStringSubmatch(upper)
		if match == nil {
			continue
		}
		if _, ok := filenameCodes[match[1]]; ok {
			return Canonical(match[1])
		}
	}
	return ""
}

// FromContent guesses the language of text. It returns "" when the text is
// empty or the detector finds nothing.
func FromContent(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len(text) > contentSample {
		cut := contentSample
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	info := whatlanggo.Detect(text)
	if info.Confidence <= 0 {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return ""
	}
	return Canonical(code)
}

// Detect combines filename and content detection. Filename markers win.
func Detect(name, content string) string {
	if tag := FromFilename(name); tag != "" {
		return tag
	}
	if tag := FromContent(content); tag != "" {
		return tag
	}
	return Unknown
}

// Canonical normalizes a user or filename supplied code ("EN_gb", "de-DE",
// "EN-WW") into a BCP 47 string. Unparseable input yields Unknown. A region
// that BCP 47 rejects is dropped and the base language kept.
func Canonical(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return Unknown
	}
	if tag, err := xlang.Parse(code); err == nil {
		return tag.String()
	}
	primary, _, _ := strings.Cut(code, "-")
	if tag, err := xlang.Parse(primary); err == nil {
		return tag.String()
	}
	return Unknown
}

// IsSource reports whether a tag is on the source side of a translation
// pair. Only English variants are sources.
func IsSource(tag string) bool {
	canonical := Canonical(tag)
	if canonical == Unknown {
		return false
	}
	parsed, err := xlang.Parse(canonical)
	if err != nil {
		return false
	}
	base, confidence := parsed.Base()
	return confidence == xlang.Exact && base.String() == "en"
}

// DisplayName renders a tag in English ("British English", "German").
func DisplayName(tag string) string {
	parsed, err := xlang.Parse(Canonical(tag))
	if err != nil || parsed == xlang.Und {
		return "Unknown"
	}
	if name := display.English.Tags().Name(parsed); name != "" {
		return name
	}
	return parsed.String()
}

// BaseName strips locale prefixes, language markers and the extension from a
// filename and normalizes separators, so translations of the same document
// share a base name.
func BaseName(name string) string {
	s := stem(name)
	s = leadingLocale.ReplaceAllString(s, "")
	s = codeInside.ReplaceAllString(s, "")
	s = codeTrailing.ReplaceAllString(s, "")
	s = separatorRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_- ")
	s = dashUnderscore.ReplaceAllString(s, "_")
	return strings.ToLower(s)
}
