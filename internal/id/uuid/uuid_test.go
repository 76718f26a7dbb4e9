// Package uuid includes tests for the product-id generator.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures product ids are valid, unique UUIDv7 values.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		id, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		parsed, err := goUUID.Parse(id)
		if err != nil {
			t.Fatalf("id %q not a valid UUID: %v", id, err)
		}
		if parsed.Version() != 7 {
			t.Fatalf("expected version 7, got %d for %s", parsed.Version(), id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

// TestGeneratorIDsSortByCreation relies on the UUIDv7 property the product
// listing order leans on: ids generated later compare greater.
func TestGeneratorIDsSortByCreation(t *testing.T) {
	t.Parallel()

	gen := New()
	first, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	second, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if !(first < second) {
		t.Fatalf("expected %s to sort before %s", first, second)
	}
}
