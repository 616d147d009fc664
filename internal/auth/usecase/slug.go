package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 64

// Slugify lowercases name, collapses every run of non [a-z0-9] characters to
// a single dash and trims dashes from both ends.
func Slugify(name string) string {
	s := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "tenant"
	}
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return s
}

// uniqueSlug appends -1, -2, ... until exists reports the slug as free.
func uniqueSlug(ctx context.Context, base string, exists func(context.Context, string) (bool, error)) (string, error) {
	slug := base
	for n := 1; ; n++ {
		taken, err := exists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
