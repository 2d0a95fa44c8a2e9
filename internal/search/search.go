// Package search derives the per-screen views over a synchronized recording
// collection: free-text and species filtering, date ranges, and the status
// and per-user aggregations.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// Criteria describes one filtered view of the collection. The zero value
// matches everything.
type Criteria struct {
	// Query matches case-insensitively as a substring against the species
	// name or the resolved place name; either match suffices.
	Query string
	// Species is the allow-set of species names. Empty matches all species.
	Species []string
	// Start and End bound the capture time inclusively. The end bound
	// extends to the last instant of its day. Zero values leave the side
	// unbounded.
	Start time.Time
	End   time.Time
}

// Filter returns the recordings matching the criteria, preserving order.
func Filter(recs []observation.Recording, c *Criteria) []observation.Recording {
	if c == nil {
		return recs
	}

	query := strings.ToLower(c.Query)
	allowed := speciesSet(c.Species)
	end := c.End
	if !end.IsZero() {
		end = endOfDay(end)
	}

	matched := make([]observation.Recording, 0, len(recs))
	for i := range recs {
		if matches(&recs[i], query, allowed, c.Start, end) {
			matched = append(matched, recs[i])
		}
	}
	return matched
}

func matches(rec *observation.Recording, query string, allowed map[string]struct{}, start, end time.Time) bool {
	if query != "" {
		species := strings.ToLower(rec.Species())
		place := strings.ToLower(rec.PlaceName)
		if !strings.Contains(species, query) && !strings.Contains(place, query) {
			return false
		}
	}

	if len(allowed) > 0 {
		if _, ok := allowed[strings.ToLower(rec.Species())]; !ok {
			return false
		}
	}

	if !start.IsZero() && rec.CapturedAt.Before(start) {
		return false
	}
	if !end.IsZero() && rec.CapturedAt.After(end) {
		return false
	}

	return true
}

func speciesSet(species []string) map[string]struct{} {
	if len(species) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(species))
	for _, s := range species {
		set[strings.ToLower(s)] = struct{}{}
	}
	return set
}

// endOfDay extends a date to 23:59:59.999 of the same day, making the range
// end inclusive of the whole day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999*int(time.Millisecond), t.Location())
}

// SortByCaptureDesc orders recordings newest capture first, in place.
func SortByCaptureDesc(recs []observation.Recording) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CapturedAt.After(recs[j].CapturedAt)
	})
}

// StatusCounts aggregates the collection by review status. Every defined
// status appears in the result, so empty buckets read as zero.
func StatusCounts(recs []observation.Recording) map[observation.Status]int {
	counts := map[observation.Status]int{
		observation.StatusNeedsReview: 0,
		observation.StatusApproved:    0,
		observation.StatusDiscarded:   0,
	}
	for i := range recs {
		counts[recs[i].Status]++
	}
	return counts
}

// SubmissionCounts aggregates recordings per owner, independent of status.
func SubmissionCounts(recs []observation.Recording) map[string]int {
	counts := make(map[string]int)
	for i := range recs {
		counts[recs[i].OwnerID]++
	}
	return counts
}

// SpeciesNames returns the distinct display species of the collection,
// sorted, for building filter pickers.
func SpeciesNames(recs []observation.Recording) []string {
	seen := make(map[string]struct{})
	var names []string
	for i := range recs {
		name := recs[i].Species()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
