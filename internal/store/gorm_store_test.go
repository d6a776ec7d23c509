package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store/storetest"
	"github.com/google/go-cmp/cmp"
)

func newStore(t *testing.T) *store.GormStore {
	t.Helper()
	return storetest.NewSQLiteStore(t, storetest.SequenceClock(time.Unix(1700000000, 0)))
}

func TestGormStoreInsertAssignsIdentifierWhenMissing(t *testing.T) {
	documentStore := newStore(t)
	ctx := context.Background()

	id, err := documentStore.Insert(ctx, "bookmarks", "", store.Fields{"userId": "user-1"})
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected store-assigned id")
	}

	document, err := documentStore.Get(ctx, "bookmarks", id)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if document.String("userId") != "user-1" {
		t.Fatalf("unexpected stored user id %q", document.String("userId"))
	}
	if document.CreatedAtMillis == 0 || document.CreatedAtMillis != document.UpdatedAtMillis {
		t.Fatalf("expected matching creation timestamps, got %d/%d", document.CreatedAtMillis, document.UpdatedAtMillis)
	}
}

func TestGormStoreInsertRejectsDuplicateIdentifier(t *testing.T) {
	documentStore := newStore(t)
	ctx := context.Background()

	if _, err := documentStore.Insert(ctx, "bookmarks", "doc-1", store.Fields{"title": "first"}); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	_, err := documentStore.Insert(ctx, "bookmarks", "doc-1", store.Fields{"title": "second"})
	if !errors.Is(err, store.ErrDuplicateDocument) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	document, err := documentStore.Get(ctx, "bookmarks", "doc-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if document.String("title") != "first" {
		t.Fatalf("expected original document to survive, got %q", document.String("title"))
	}

	if _, err := documentStore.Insert(ctx, "tvshowbookmarks", "doc-1", store.Fields{"title": "other"}); err != nil {
		t.Fatalf("expected same id in another collection to succeed: %v", err)
	}
}

func TestGormStoreQueryFiltersByFields(t *testing.T) {
	documentStore := newStore(t)
	ctx := context.Background()

	seed := []struct {
		id     string
		fields store.Fields
	}{
		{id: "a", fields: store.Fields{"userId": "user-1", "externalId": "10", "rating": 7.5}},
		{id: "b", fields: store.Fields{"userId": "user-2", "externalId": "10", "rating": 6.0}},
		{id: "c", fields: store.Fields{"userId": "user-1", "externalId": "11", "rating": 9.0}},
	}
	for _, item := range seed {
		if _, err := documentStore.Insert(ctx, "bookmarks", item.id, item.fields); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}

	testCases := []struct {
		name     string
		filters  []store.Filter
		expected []string
	}{
		{name: "no filters", filters: nil, expected: []string{"a", "b", "c"}},
		{name: "by user", filters: []store.Filter{store.Where("userId", "user-1")}, expected: []string{"a", "c"}},
		{name: "by user and title", filters: []store.Filter{store.Where("userId", "user-1"), store.Where("externalId", "11")}, expected: []string{"c"}},
		{name: "by number", filters: []store.Filter{store.Where("rating", 6.0)}, expected: []string{"b"}},
		{name: "no match", filters: []store.Filter{store.Where("userId", "user-3")}, expected: []string{}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			documents, err := documentStore.Query(ctx, "bookmarks", testCase.filters...)
			if err != nil {
				t.Fatalf("unexpected query error: %v", err)
			}
			ids := make([]string, 0, len(documents))
			for _, document := range documents {
				ids = append(ids, document.ID)
			}
			if diff := cmp.Diff(testCase.expected, ids); diff != "" {
				t.Fatalf("unexpected ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGormStoreQueryOneReturnsNilWhenMissing(t *testing.T) {
	documentStore := newStore(t)

	document, err := documentStore.QueryOne(context.Background(), "reviews", store.Where("userId", "nobody"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if document != nil {
		t.Fatalf("expected nil document, got %#v", document)
	}
}

func TestGormStoreQueryRejectsUnsafeField(t *testing.T) {
	documentStore := newStore(t)

	_, err := documentStore.Query(context.Background(), "bookmarks", store.Where("userId') OR 1=1 --", "x"))
	if err == nil {
		t.Fatalf("expected invalid field error")
	}
}

func TestGormStoreSetMergesOrReplaces(t *testing.T) {
	documentStore := newStore(t)
	ctx := context.Background()

	if err := documentStore.Set(ctx, "reviews", "r-1", store.Fields{"text": "fine", "imageUrl": "http://img"}, true); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := documentStore.Set(ctx, "reviews", "r-1", store.Fields{"text": "great"}, true); err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	merged, err := documentStore.Get(ctx, "reviews", "r-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if merged.String("text") != "great" || merged.String("imageUrl") != "http://img" {
		t.Fatalf("unexpected merged fields: %#v", merged.Fields)
	}

	if err := documentStore.Set(ctx, "reviews", "r-1", store.Fields{"text": "replaced"}, false); err != nil {
		t.Fatalf("unexpected replace error: %v", err)
	}
	replaced, err := documentStore.Get(ctx, "reviews", "r-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if _, ok := replaced.Fields["imageUrl"]; ok {
		t.Fatalf("expected replace to drop unspecified fields, got %#v", replaced.Fields)
	}
	if replaced.CreatedAtMillis != merged.CreatedAtMillis {
		t.Fatalf("expected creation time to be preserved")
	}
}

func TestGormStoreDeleteIsIdempotent(t *testing.T) {
	documentStore := newStore(t)
	ctx := context.Background()

	if _, err := documentStore.Insert(ctx, "bookmarks", "doc-1", store.Fields{}); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := documentStore.Delete(ctx, "bookmarks", "doc-1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := documentStore.Delete(ctx, "bookmarks", "doc-1"); err != nil {
		t.Fatalf("expected second delete to succeed, got %v", err)
	}
	_, err := documentStore.Get(ctx, "bookmarks", "doc-1")
	if !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestValidateCollection(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "simple", value: "bookmarks", valid: true},
		{name: "underscore", value: "tv_bookmarks", valid: true},
		{name: "empty", value: " ", valid: false},
		{name: "uppercase", value: "Bookmarks", valid: false},
		{name: "path", value: "a/b", valid: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := store.ValidateCollection(testCase.value)
			if testCase.valid && err != nil {
				t.Fatalf("expected valid collection, got %v", err)
			}
			if !testCase.valid && !errors.Is(err, store.ErrInvalidCollection) {
				t.Fatalf("expected invalid collection error, got %v", err)
			}
		})
	}
}
