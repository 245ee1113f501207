package chunked

import (
	"testing"

	"github.com/kbukum/wonderwhisper/transcription"
)

func segs(texts ...string) []transcription.Segment {
	out := make([]transcription.Segment, len(texts))
	for i, t := range texts {
		out[i] = transcription.Segment{Seq: uint64(i), Text: t, IsFinal: true}
	}
	return out
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []transcription.Segment
		opts MergeOptions
		want string
	}{
		{
			name: "four token seam",
			in:   segs("the quick brown fox jumps", "quick brown fox jumps over the lazy dog"),
			want: "the quick brown fox jumps over the lazy dog",
		},
		{
			name: "two token seam with lowered minimum",
			in:   segs("the quick brown fox jumps", "fox jumps over the lazy dog"),
			opts: MergeOptions{MinOverlap: 2},
			want: "the quick brown fox jumps over the lazy dog",
		},
		{
			name: "two token seam below default minimum",
			in:   segs("the quick brown fox jumps", "fox jumps over the lazy dog"),
			want: "the quick brown fox jumps fox jumps over the lazy dog",
		},
		{
			name: "case and punctuation ignored",
			in:   segs("I think that we should.", "That we should go home"),
			want: "I think that we should. go home",
		},
		{
			name: "no overlap",
			in:   segs("hello there", "general kenobi"),
			want: "hello there general kenobi",
		},
		{
			name: "empty chunks skipped",
			in:   segs("", "one two three", "  ", "one two three four five"),
			want: "one two three four five",
		},
		{
			name: "whole chunk repeated",
			in:   segs("alpha beta gamma delta", "beta gamma delta"),
			want: "alpha beta gamma delta",
		},
		{
			name: "nothing",
			in:   nil,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Merge(tt.in, tt.opts); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMerge_OrderInvariant(t *testing.T) {
	in := segs(
		"so the plan for today",
		"plan for today is to ship",
		"is to ship the release",
		"and then celebrate",
	)
	want := Merge(in, MergeOptions{})

	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, p := range perms {
		shuffled := make([]transcription.Segment, len(in))
		for i, j := range p {
			shuffled[i] = in[j]
		}
		if got := Merge(shuffled, MergeOptions{}); got != want {
			t.Errorf("order %v: expected %q, got %q", p, want, got)
		}
	}
	if want != "so the plan for today is to ship the release and then celebrate" {
		t.Errorf("unexpected merge %q", want)
	}
}

func TestMerge_DropsAtMostMaxOverlap(t *testing.T) {
	// A nine token repeat never matches inside the 3..8 window.
	in := segs(
		"x one two three four five six seven eight nine",
		"one two three four five six seven eight nine ten",
	)
	want := "x one two three four five six seven eight nine one two three four five six seven eight nine ten"
	if got := Merge(in, MergeOptions{}); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	eight := segs(
		"x one two three four five six seven eight",
		"one two three four five six seven eight nine",
	)
	if got := Merge(eight, MergeOptions{}); got != "x one two three four five six seven eight nine" {
		t.Errorf("expected eight token seam dropped, got %q", got)
	}
}

func TestMergeOptions_Validate(t *testing.T) {
	o := MergeOptions{MinOverlap: 5, MaxOverlap: 4}
	if err := o.Validate(); err == nil {
		t.Error("expected error for min > max")
	}
	o = MergeOptions{}
	o.ApplyDefaults()
	if o.MinOverlap != 3 || o.MaxOverlap != 8 {
		t.Errorf("expected 3..8, got %d..%d", o.MinOverlap, o.MaxOverlap)
	}
}
