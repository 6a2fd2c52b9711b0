package authz

import (
	"testing"

	"github.com/hitoshi/placeman/internal/model"
)

// TestAuthorize_Owner は作成者本人のみAllowedになることを検証する。
func TestAuthorize_Owner(t *testing.T) {
	place := &model.Place{ID: "p1", CreatorID: "user-1"}

	if got := Authorize("user-1", place); got != Allowed {
		t.Errorf("Authorize(owner) = %v, want Allowed", got)
	}
}

// TestAuthorize_NonOwner は作成者以外がすべてDeniedになることを検証する。
func TestAuthorize_NonOwner(t *testing.T) {
	place := &model.Place{ID: "p1", CreatorID: "user-1"}

	others := []string{"user-2", "USER-1", "user-1 ", ""}
	for _, id := range others {
		if got := Authorize(id, place); got != Denied {
			t.Errorf("Authorize(%q) = %v, want Denied", id, got)
		}
	}
}

// TestAuthorize_NilPlace はnilの場所に対してDeniedになることを検証する。
func TestAuthorize_NilPlace(t *testing.T) {
	if got := Authorize("user-1", nil); got != Denied {
		t.Errorf("Authorize(nil place) = %v, want Denied", got)
	}
}
