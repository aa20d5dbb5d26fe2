package pathreduction

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReduce(t *testing.T) {
	cases := []struct {
		name  string
		paths []string
		want  []string
	}{
		{
			name:  "empty",
			paths: nil,
			want:  nil,
		},
		{
			name:  "single path",
			paths: []string{"/a/b/c"},
			want:  []string{"/a/b/c"},
		},
		{
			name:  "nested paths collapse to ancestor",
			paths: []string{"/a/b", "/a/b/c", "/a/b/c/d"},
			want:  []string{"/a/b"},
		},
		{
			name:  "siblings are both kept",
			paths: []string{"/a/b", "/a/c"},
			want:  []string{"/a/b", "/a/c"},
		},
		{
			name:  "string prefix that is not a path prefix is not dominated",
			paths: []string{"/a/b", "/a/bc"},
			want:  []string{"/a/b", "/a/bc"},
		},
		{
			name:  "duplicate paths collapse",
			paths: []string{"/a/b", "/a/b"},
			want:  []string{"/a/b"},
		},
		{
			name:  "interleaved ancestor and descendants of different subtrees",
			paths: []string{"/a/b/x", "/a/b", "/a/bc/y", "/a/c"},
			want:  []string{"/a/b", "/a/bc/y", "/a/c"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reduce(tc.paths)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReduceIsIdempotent(t *testing.T) {
	inputs := [][]string{
		{"/a/b", "/a/b/c", "/x"},
		{"/a", "/b", "/c"},
		{"/a/b/c/d/e", "/a/b", "/a/b/c"},
		nil,
	}
	for _, paths := range inputs {
		once := Reduce(paths)
		twice := Reduce(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Reduce(Reduce(%v)) != Reduce(%v) (-once +twice):\n%s", paths, paths, diff)
		}
	}
}

func TestReduceIsSubset(t *testing.T) {
	paths := []string{"/a/b", "/a/b/c", "/a/bc", "/x/y/z", "/x/y"}
	in := make(map[string]bool, len(paths))
	for _, p := range paths {
		in[p] = true
	}
	for _, p := range Reduce(paths) {
		if !in[p] {
			t.Errorf("Reduce produced %q, not present in input", p)
		}
	}
}
