package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/width"
)

var counterToken = regexp.MustCompile(`\{(#+)\}`)

// RenderNumber expands a numbering template.
//
//	{YYYY} {YY} {MM} {DD}  date parts of at
//	{PREFIX}               the configured prefix
//	{#...#}                seq zero-padded to the number of '#', never truncated
//
// Any other text, braces included, is copied as is.
func RenderNumber(format, prefix string, seq int64, at time.Time) string {
	out := counterToken.ReplaceAllStringFunc(format, func(tok string) string {
		pad := len(tok) - 2
		return fmt.Sprintf("%0*d", pad, seq)
	})
	r := strings.NewReplacer(
		"{YYYY}", fmt.Sprintf("%04d", at.Year()),
		"{YY}", fmt.Sprintf("%02d", at.Year()%100),
		"{MM}", fmt.Sprintf("%02d", int(at.Month())),
		"{DD}", fmt.Sprintf("%02d", at.Day()),
		"{PREFIX}", prefix,
	)
	return r.Replace(out)
}

// HasCounterToken reports whether format renders the sequence value at all.
func HasCounterToken(format string) bool {
	return counterToken.MatchString(format)
}

// NormalizePrefix folds full-width characters to ASCII and trims spaces.
func NormalizePrefix(prefix string) string {
	return strings.TrimSpace(width.Narrow.String(prefix))
}

// Column limits of numbering_sequences / number_allocations.
const (
	maxPrefixLen = 20
	maxFormatLen = 64
	maxNumberLen = 64
)

// utcNow default service clock, so {YYYY}/{MM}/{DD} do not follow the host time zone.
func utcNow() time.Time {
	return time.Now().UTC()
}
