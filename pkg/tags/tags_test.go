package tags

import (
	"reflect"
	"testing"
)

func TestNormalizeDropsEmptyAndDuplicates(t *testing.T) {
	in := []string{" #News ", "", "   ", "#news", "#Tech", "#"}
	got := Normalize(in)
	want := []string{"#News", "#Tech"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize: got %v want %v", got, want)
	}
}

func TestExtractHashtags(t *testing.T) {
	got := Extract("breaking #News today, also #tech! but not bare# or #")
	want := []string{"#News", "#tech"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract: got %v want %v", got, want)
	}
}

func TestMergeExplicitFirst(t *testing.T) {
	got := Merge([]string{"#Go"}, "post about #go and #news")
	want := []string{"#Go", "#news"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge: got %v want %v", got, want)
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	set := []string{"#News", "#Tech"}
	if !Match(set, "#news") {
		t.Fatal("expected #news to match #News")
	}
	if !Match(set, "NEWS") {
		t.Fatal("expected NEWS to match without hash prefix")
	}
	if Match(set, "nope") {
		t.Fatal("unexpected match for nope")
	}
	if Match(set, "") {
		t.Fatal("empty tag must not match")
	}
}
