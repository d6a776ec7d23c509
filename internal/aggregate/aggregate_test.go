package aggregate

import (
	"testing"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
	"github.com/google/go-cmp/cmp"
)

func record(title, country string) bookmarks.Record {
	return bookmarks.Record{Title: title, ProductionCountry: country}
}

func popularity(value float64) *float64 {
	return &value
}

func titlesOf(items []bookmarks.Record) []string {
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	return titles
}

func TestCountryTableHasSixtyEntries(t *testing.T) {
	if CountryCount() != 60 {
		t.Fatalf("expected 60 countries, got %d", CountryCount())
	}
	if KnownCountry("Unknown") || !KnownCountry("SI") {
		t.Fatalf("unexpected country membership")
	}
}

func TestGroupByCountryDropsUnknownCodes(t *testing.T) {
	groups := GroupByCountry([]bookmarks.Record{
		record("Heat", "US"),
		record("Se7en", "US"),
		record("Amelie", "FR"),
		record("Nowhere", "ZZ"),
		record("Untitled", "Unknown"),
	})

	counts := make(map[string]int, len(groups))
	for code, group := range groups {
		counts[code] = group.Count()
	}
	if diff := cmp.Diff(map[string]int{"US": 2, "FR": 1}, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Heat", "Se7en"}, titlesOf(groups["US"].Items)); diff != "" {
		t.Fatalf("expected insertion order (-want +got):\n%s", diff)
	}
	if groups["FR"].Color != "#8c564b" || groups["FR"].Coordinate.Latitude != 46.6034 {
		t.Fatalf("unexpected FR pin %#v", groups["FR"])
	}
}

func TestGroupByCountryEmptyInput(t *testing.T) {
	groups := GroupByCountry(nil)
	if groups == nil || len(groups) != 0 {
		t.Fatalf("expected empty map, got %#v", groups)
	}
}

func TestCountryGroupAverageRating(t *testing.T) {
	if (CountryGroup{}).AverageRating() != 0 {
		t.Fatalf("expected zero for empty group")
	}
	group := CountryGroup{Items: []bookmarks.Record{{VoteAverage: 6}, {VoteAverage: 8}}}
	if group.AverageRating() != 7 {
		t.Fatalf("unexpected average %v", group.AverageRating())
	}
}

func TestOrderedGroupsByCountThenCode(t *testing.T) {
	groups := GroupByCountry([]bookmarks.Record{
		record("a", "JP"),
		record("b", "FR"),
		record("c", "US"),
		record("d", "US"),
	})
	codes := make([]string, 0, len(groups))
	for _, group := range OrderedGroups(groups) {
		codes = append(codes, group.CountryCode)
	}
	if diff := cmp.Diff([]string{"US", "FR", "JP"}, codes); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestMergeAndRankKeepsMoviesFirstOnTies(t *testing.T) {
	ranked := MergeAndRank(
		[]catalog.Title{{ID: 1, Title: "Movie", Popularity: popularity(5)}},
		[]catalog.Title{{ID: 2, Name: "Show", Popularity: popularity(5)}},
	)
	if len(ranked) != 2 {
		t.Fatalf("expected two items, got %d", len(ranked))
	}
	if ranked[0].ID != 1 || ranked[0].Type != TypeMovie || ranked[1].ID != 2 || ranked[1].Type != TypeTV {
		t.Fatalf("expected movie before show on equal popularity, got %#v", ranked)
	}
}

func TestMergeAndRankOrdersByPopularity(t *testing.T) {
	ranked := MergeAndRank(
		[]catalog.Title{
			{ID: 10, Popularity: popularity(3)},
			{ID: 11},
		},
		[]catalog.Title{
			{ID: 20, Popularity: popularity(9)},
			{ID: 21, Popularity: popularity(3)},
		},
	)
	got := make([]int64, 0, len(ranked))
	for _, item := range ranked {
		got = append(got, item.ID)
	}
	if diff := cmp.Diff([]int64{20, 10, 21, 11}, got); diff != "" {
		t.Fatalf("unexpected ranking (-want +got):\n%s", diff)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].PopularityOrZero() < ranked[i].PopularityOrZero() {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
}

func TestFilterBookmarks(t *testing.T) {
	records := []bookmarks.Record{
		{Title: "The Office", ReleaseOrAirDate: "2005-03-24", CreatedAt: 100},
		{Title: "Office Space", ReleaseOrAirDate: "1999-02-19", CreatedAt: 300},
		{Title: "Lost Office", CreatedAt: 200},
		{Title: "Heat", ReleaseOrAirDate: "1995-12-15", CreatedAt: 400},
	}

	testCases := []struct {
		name   string
		query  string
		sortBy string
		want   []string
	}{
		{name: "default newest first", query: "", sortBy: "", want: []string{"Heat", "Office Space", "Lost Office", "The Office"}},
		{name: "case insensitive match", query: "OFFICE", sortBy: SortByTimestamp, want: []string{"Office Space", "Lost Office", "The Office"}},
		{name: "year with unknown last", query: "office", sortBy: SortByYear, want: []string{"The Office", "Office Space", "Lost Office"}},
		{name: "no match", query: "zzz", sortBy: SortByYear, want: []string{}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := titlesOf(FilterBookmarks(records, testCase.query, testCase.sortBy))
			if diff := cmp.Diff(testCase.want, got); diff != "" {
				t.Fatalf("unexpected titles (-want +got):\n%s", diff)
			}
		})
	}
}
