package changelog

import (
	"slices"
	"strings"

	f "github.com/ros-tooling/changelog-collator/pkg/functional"
)

// AggregateContributors merges contributor names from several packages into
// one sorted list. Names are trimmed and compared case-sensitively.
func AggregateContributors(sets ...[]string) []string {
	all := f.NewSet[string]()
	for _, set := range sets {
		for _, name := range set {
			if name = strings.TrimSpace(name); name != "" {
				all.Add(name)
			}
		}
	}
	names := all.Items()
	slices.Sort(names)
	return names
}
