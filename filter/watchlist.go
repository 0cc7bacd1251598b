// Package filter implements the completion filter: it extracts the set of
// accounts referenced by a complete transaction and decides whether any of
// them matches the operator's watch list.
package filter

import (
	"fmt"
	"regexp"

	"github.com/near-indexer/txwatch/model"
)

// compiledEntry is a watch-list entry with its regex pre-compiled, so
// matching never recompiles a pattern per transaction.
type compiledEntry struct {
	literal string
	re      *regexp.Regexp
}

// WatchList is the compiled, immutable form of the operator-supplied
// account filters, loaded once at startup.
type WatchList struct {
	entries []compiledEntry
}

// Compile compiles every regex entry up front. An invalid regular
// expression is operator error and is therefore a fatal invariant
// violation, not a recoverable one.
func Compile(entries []model.WatchListEntry) (*WatchList, error) {
	w := &WatchList{entries: make([]compiledEntry, 0, len(entries))}
	for _, e := range entries {
		if !e.IsRegex {
			w.entries = append(w.entries, compiledEntry{literal: e.AccountID})
			continue
		}
		re, err := regexp.Compile(e.AccountID)
		if err != nil {
			return nil, model.Fatalf("filter: invalid watch list regex %q: %w", e.AccountID, err)
		}
		w.entries = append(w.entries, compiledEntry{re: re})
	}
	return w, nil
}

// Matches reports whether any account in accounts matches any watch-list
// entry: exact equality for literal entries, regex search for regex ones.
func (w *WatchList) Matches(accounts []string) bool {
	for _, e := range w.entries {
		for _, a := range accounts {
			if e.re != nil {
				if e.re.MatchString(a) {
					return true
				}
				continue
			}
			if a == e.literal {
				return true
			}
		}
	}
	return false
}

func (w *WatchList) String() string {
	return fmt.Sprintf("filter.WatchList(%d entries)", len(w.entries))
}
