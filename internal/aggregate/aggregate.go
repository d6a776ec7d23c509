// Package aggregate derives map groupings, merged rankings and filtered views from bookmarks and catalog titles.
package aggregate

import (
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
)

// CountryGroup collects the bookmarks produced in one country.
type CountryGroup struct {
	CountryCode string             `json:"countryCode"`
	Coordinate  Coordinate         `json:"coordinate"`
	Color       string             `json:"color"`
	Items       []bookmarks.Record `json:"items"`
}

// Count is the number of bookmarks in the group.
func (g CountryGroup) Count() int {
	return len(g.Items)
}

// AverageRating is the mean vote average of the group, or 0 for an empty group.
func (g CountryGroup) AverageRating() float64 {
	if len(g.Items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range g.Items {
		total += item.VoteAverage
	}
	return total / float64(len(g.Items))
}

// GroupByCountry buckets records by production country, keeping input order inside each bucket.
// Records whose country has no map coordinate are left out.
func GroupByCountry(records []bookmarks.Record) map[string]CountryGroup {
	groups := make(map[string]CountryGroup)
	for _, record := range records {
		code := record.ProductionCountry
		pin, ok := countryPins[code]
		if !ok {
			continue
		}
		group, exists := groups[code]
		if !exists {
			group = CountryGroup{CountryCode: code, Coordinate: pin.coordinate, Color: pin.color}
		}
		group.Items = append(group.Items, record)
		groups[code] = group
	}
	return groups
}

// OrderedGroups lists groups by descending count, ties broken by country code.
func OrderedGroups(groups map[string]CountryGroup) []CountryGroup {
	ordered := make([]CountryGroup, 0, len(groups))
	for _, group := range groups {
		ordered = append(ordered, group)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Count() != ordered[j].Count() {
			return ordered[i].Count() > ordered[j].Count()
		}
		return ordered[i].CountryCode < ordered[j].CountryCode
	})
	return ordered
}

// Item type tags used by MergeAndRank.
const (
	TypeMovie = "movie"
	TypeTV    = "tv"
)

// RankedItem is a catalog title tagged with its media type.
type RankedItem struct {
	catalog.Title
	Type string `json:"type"`
}

// MergeAndRank concatenates movies then shows and stably sorts them by descending popularity.
// A missing popularity ranks as zero.
func MergeAndRank(movies, tvShows []catalog.Title) []RankedItem {
	ranked := make([]RankedItem, 0, len(movies)+len(tvShows))
	for _, movie := range movies {
		ranked = append(ranked, RankedItem{Title: movie, Type: TypeMovie})
	}
	for _, show := range tvShows {
		ranked = append(ranked, RankedItem{Title: show, Type: TypeTV})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PopularityOrZero() > ranked[j].PopularityOrZero()
	})
	return ranked
}

// Sort orders accepted by FilterBookmarks.
const (
	SortByTimestamp = "timestamp"
	SortByYear      = "year"
)

// FilterBookmarks keeps records whose title contains query, case-insensitively, and sorts them.
// sortBy "year" orders by release year descending with unknown years last; anything else orders newest first.
func FilterBookmarks(records []bookmarks.Record, query, sortBy string) []bookmarks.Record {
	needle := strings.ToLower(strings.TrimSpace(query))
	filtered := make([]bookmarks.Record, 0, len(records))
	for _, record := range records {
		if needle == "" || strings.Contains(strings.ToLower(record.Title), needle) {
			filtered = append(filtered, record)
		}
	}

	switch sortBy {
	case SortByYear:
		sort.SliceStable(filtered, func(i, j int) bool {
			left, right := filtered[i].ReleaseYear(), filtered[j].ReleaseYear()
			if left == 0 || right == 0 {
				return left != 0 && right == 0
			}
			return left > right
		})
	default:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].CreatedAt > filtered[j].CreatedAt
		})
	}
	return filtered
}
