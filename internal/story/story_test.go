package story

import (
	"reflect"
	"testing"
)

func TestSplitTagsTrimsAndDropsEmpties(t *testing.T) {
	got := SplitTags(" alpha , beta,,gamma ")
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSplitTagsEmptyString(t *testing.T) {
	if got := SplitTags(""); len(got) != 0 {
		t.Fatalf("expected no tags, got %v", got)
	}
}

func TestTagRoundTrip(t *testing.T) {
	tags := []string{"alpha", "beta"}
	joined := JoinTags(tags)
	if joined != "alpha,beta" {
		t.Fatalf("expected alpha,beta, got %q", joined)
	}
	if got := SplitTags(joined); !reflect.DeepEqual(got, tags) {
		t.Fatalf("round trip changed tags: %v", got)
	}
}

func TestJoinTagsNormalizesWhitespace(t *testing.T) {
	if got := JoinTags([]string{" alpha ", "", "beta"}); got != "alpha,beta" {
		t.Fatalf("expected alpha,beta, got %q", got)
	}
}
