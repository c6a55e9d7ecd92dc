package media

import (
	"reflect"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	text := "Fresh pasta every day. Our pasta is handmade, and the pasta sauce " +
		"uses tomatoes from local farms. Visit our pasta bar downtown."

	got := ExtractKeywords(text, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 keywords, got %v", got)
	}
	if got[0] != "pasta" {
		t.Errorf("most frequent term should lead: got %v", got)
	}
	for _, kw := range got {
		if _, stop := stopWords[kw]; stop {
			t.Errorf("stop word %q leaked into keywords", kw)
		}
		if len(kw) < 3 {
			t.Errorf("short token %q leaked into keywords", kw)
		}
	}
}

func TestExtractKeywordsTiesKeepFirstSeenOrder(t *testing.T) {
	got := ExtractKeywords("zebra apple zebra apple mango", 3)
	want := []string{"zebra", "apple", "mango"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractKeywordsDeterministic(t *testing.T) {
	text := "grand opening sale sale weekend weekend weekend discount"
	first := ExtractKeywords(text, 5)
	for i := 0; i < 20; i++ {
		if next := ExtractKeywords(text, 5); !reflect.DeepEqual(next, first) {
			t.Fatalf("extraction not deterministic: %v vs %v", next, first)
		}
	}
}

func TestExtractKeywordsEdgeCases(t *testing.T) {
	if got := ExtractKeywords("", 5); got != nil {
		t.Errorf("empty text: got %v, want nil", got)
	}
	if got := ExtractKeywords("anything", 0); got != nil {
		t.Errorf("zero budget: got %v, want nil", got)
	}
	if got := ExtractKeywords("the and for a an", 5); len(got) != 0 {
		t.Errorf("all-stop-word text: got %v, want empty", got)
	}
}
