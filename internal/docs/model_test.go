package docs

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewDocumentTitle(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  string
		expectErr bool
	}{
		{name: "trims whitespace", input: "  Chapter One \n", expected: "Chapter One"},
		{name: "accepts max runes", input: strings.Repeat("é", MaxTitleRunes), expected: strings.Repeat("é", MaxTitleRunes)},
		{name: "rejects empty", input: "   ", expectErr: true},
		{name: "rejects too long", input: strings.Repeat("a", MaxTitleRunes+1), expectErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			title, err := NewDocumentTitle(testCase.input)
			if testCase.expectErr {
				if !errors.Is(err, ErrInvalidTitle) {
					t.Fatalf("expected ErrInvalidTitle, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if title.String() != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, title.String())
			}
		})
	}
}

func TestNumericBounds(t *testing.T) {
	for _, value := range []int64{0, 11, -1} {
		if _, err := NewPageCount(value); !errors.Is(err, ErrInvalidPageCount) {
			t.Fatalf("expected page count %d to be rejected, got %v", value, err)
		}
	}
	for _, value := range []int64{1, 10} {
		if _, err := NewPageCount(value); err != nil {
			t.Fatalf("expected page count %d to be accepted: %v", value, err)
		}
	}
	for _, value := range []int64{-1, 10} {
		if _, err := NewPageIndex(value); !errors.Is(err, ErrInvalidPageIndex) {
			t.Fatalf("expected page index %d to be rejected, got %v", value, err)
		}
	}
	for _, value := range []int64{0, 9} {
		if _, err := NewPageIndex(value); err != nil {
			t.Fatalf("expected page index %d to be accepted: %v", value, err)
		}
	}
	for _, value := range []int64{0, 4} {
		if _, err := NewPageStyle(value); !errors.Is(err, ErrInvalidPageStyle) {
			t.Fatalf("expected style %d to be rejected, got %v", value, err)
		}
	}
}

func TestNewUpdateBlob(t *testing.T) {
	if _, err := NewUpdateBlob(nil); !errors.Is(err, ErrUpdateEmpty) {
		t.Fatalf("expected ErrUpdateEmpty, got %v", err)
	}
	if _, err := NewUpdateBlob(make([]byte, MaxUpdateBytes+1)); !errors.Is(err, ErrUpdateTooLarge) {
		t.Fatalf("expected ErrUpdateTooLarge, got %v", err)
	}

	raw := []byte{1, 2, 3}
	blob, err := NewUpdateBlob(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw[0] = 9
	if !bytes.Equal(blob.Bytes(), []byte{1, 2, 3}) {
		t.Fatalf("expected blob to be copied, got %v", blob.Bytes())
	}
	if _, err := NewUpdateBlob(make([]byte, MaxUpdateBytes)); err != nil {
		t.Fatalf("expected blob at limit to be accepted: %v", err)
	}
}

func TestIdentifiersRejectEmptyAndOverlong(t *testing.T) {
	if _, err := NewDocumentID(" "); !errors.Is(err, ErrInvalidDocumentID) {
		t.Fatalf("expected ErrInvalidDocumentID, got %v", err)
	}
	if _, err := NewUserID(strings.Repeat("u", 191)); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
	if _, err := NewJoinRequestID(""); !errors.Is(err, ErrInvalidJoinRequestID) {
		t.Fatalf("expected ErrInvalidJoinRequestID, got %v", err)
	}
	id, err := NewDocumentID(" doc-1 ")
	if err != nil || id.String() != "doc-1" {
		t.Fatalf("expected trimmed identifier, got %q (%v)", id, err)
	}
}

func TestNewPagination(t *testing.T) {
	testCases := []struct {
		name          string
		page          int64
		limit         int64
		limitProvided bool
		expected      Pagination
	}{
		{name: "defaults", page: 0, expected: Pagination{Page: 1, Limit: 20}},
		{name: "clamps low limit", page: 2, limit: 0, limitProvided: true, expected: Pagination{Page: 2, Limit: 1}},
		{name: "clamps high limit", page: -3, limit: 500, limitProvided: true, expected: Pagination{Page: 1, Limit: 100}},
		{name: "keeps valid values", page: 4, limit: 15, limitProvided: true, expected: Pagination{Page: 4, Limit: 15}},
		{name: "clamps huge page", page: math.MaxInt64, limit: 100, limitProvided: true, expected: Pagination{Page: math.MaxInt32, Limit: 100}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := NewPagination(testCase.page, testCase.limit, testCase.limitProvided)
			if got != testCase.expected {
				t.Fatalf("expected %+v, got %+v", testCase.expected, got)
			}
		})
	}

	farthest := NewPagination(math.MaxInt64, 100, true)
	if farthest.Offset() <= 0 {
		t.Fatalf("expected positive offset for the last page window, got %d", farthest.Offset())
	}

	window := Pagination{Page: 3, Limit: 20}
	if window.Offset() != 40 {
		t.Fatalf("expected offset 40, got %d", window.Offset())
	}
	if window.TotalPages(0) != 1 || window.TotalPages(41) != 3 || window.TotalPages(40) != 2 {
		t.Fatalf("unexpected total pages computation")
	}
}

func TestJoinRequestStatusNames(t *testing.T) {
	for _, status := range []JoinRequestStatus{JoinRequestPending, JoinRequestApproved, JoinRequestDenied} {
		parsed, err := ParseJoinRequestStatus(status.String())
		if err != nil || parsed != status {
			t.Fatalf("round trip failed for %s: %v", status, err)
		}
	}
	if _, err := ParseJoinRequestStatus("archived"); !errors.Is(err, ErrInvalidJoinRequestStatus) {
		t.Fatalf("expected ErrInvalidJoinRequestStatus, got %v", err)
	}
	if JoinRequestPending.Terminal() || !JoinRequestDenied.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
	if MemberRoleOwner.String() != "owner" || MemberRoleEditor.String() != "editor" {
		t.Fatalf("unexpected role names")
	}
}
