package ngfilter

import "testing"

func TestNoOpReturnsTextUnchanged(t *testing.T) {
	var l Lexicon = NoOp{}
	in := "some product title with whatever words"
	if got := l.Clean(in); got != in {
		t.Fatalf("expected NoOp.Clean to pass text through unchanged, got %q", got)
	}
}
