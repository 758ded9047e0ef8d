// Package validation implements content checks applied during publish:
// semantic version parsing and ordering, and archive structure validation.
package validation

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// ParseVersion parses a version string, rejecting anything that is not a
// valid semantic version.
func ParseVersion(s string) (*goversion.Version, error) {
	v, err := goversion.NewSemver(s)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version %q: %w", s, err)
	}
	return v, nil
}

// Latest returns the highest parseable version from nums by semantic version
// precedence. Unparseable entries are skipped; an error is returned only
// when nothing parses.
func Latest(nums []string) (string, error) {
	var max *goversion.Version
	var maxNum string
	for _, num := range nums {
		v, err := goversion.NewSemver(num)
		if err != nil {
			continue
		}
		if max == nil || v.GreaterThan(max) {
			max = v
			maxNum = num
		}
	}
	if max == nil {
		return "", fmt.Errorf("no valid semantic versions among %d candidates", len(nums))
	}
	return maxNum, nil
}
