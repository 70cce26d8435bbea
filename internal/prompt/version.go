package prompt

import (
	"fmt"
	"slices"

	"golang.org/x/mod/semver"
)

// ValidateVersion checks that v is a semver tag such as "v1.0".
func ValidateVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid prompt version %q", v)
	}
	return nil
}

// SortVersions orders versions oldest first. Invalid tags sort before
// every valid one, in their original order.
func SortVersions(versions []string) {
	slices.SortStableFunc(versions, semver.Compare)
}
