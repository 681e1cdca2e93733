package registry

import (
	"fmt"
	"pagobot/model"
	"strings"

	"golang.org/x/text/cases"
)

// foldName returns the case-folded form used for name comparison.
// A Caser is stateful, so a fresh one is used per call.
func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NameMatcher returns a Find predicate matching name case-insensitively.
func NameMatcher(name string) func(model.Client) bool {
	want := foldName(name)
	return func(c model.Client) bool {
		return want != "" && foldName(c.Name) == want
	}
}

// FindByName returns the first client (in key order) whose name matches,
// plus the keys of any further clients sharing that name so the caller can
// warn about the ambiguity. It returns ErrNotFound when nothing matches.
func FindByName(s Store, name string) (*model.Client, []string, error) {
	clients, err := s.List()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list clients for name lookup: %w", err)
	}
	match := NameMatcher(name)
	var first *model.Client
	var duplicates []string
	for i := range clients {
		if !match(clients[i]) {
			continue
		}
		if first == nil {
			first = &clients[i]
			continue
		}
		duplicates = append(duplicates, clients[i].Key)
	}
	if first == nil {
		return nil, nil, ErrNotFound
	}
	return first, duplicates, nil
}
