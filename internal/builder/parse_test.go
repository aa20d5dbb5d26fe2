package builder

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		line string
		want logDatum
	}{
		{
			name: "evaluating file",
			line: "evaluating file '/home/user/project/shell.nix'",
			want: logDatum{kind: datumSource, source: "/home/user/project/shell.nix"},
		},
		{
			name: "copied source",
			line: "copied source '/home/user/project/default.nix' -> '/nix/store/abc-default.nix'",
			want: logDatum{kind: datumSource, source: "/home/user/project/default.nix"},
		},
		{
			name: "lorri read",
			line: "trace: lorri read: '/home/user/project/lib.nix'",
			want: logDatum{kind: datumSource, source: "/home/user/project/lib.nix"},
		},
		{
			name: "lorri attribute",
			line: "trace: lorri attribute: 'shell' -> '/nix/store/xyz-shell-env'",
			want: logDatum{kind: datumAttrDrv, name: "shell", drv: "/nix/store/xyz-shell-env"},
		},
		{
			name: "unmatched line falls through to text",
			line: "these derivations will be built:",
			want: logDatum{kind: datumText, text: "these derivations will be built:"},
		},
		{
			name: "non-utf8 line falls through to text",
			line: string([]byte{0xff, 0xfe, 0x00}),
			want: logDatum{kind: datumText, text: string([]byte{0xff, 0xfe, 0x00})},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify([]byte(tc.line))
			if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(logDatum{})); diff != "" {
				t.Errorf("classify(%q) mismatch (-want +got):\n%s", tc.line, diff)
			}
		})
	}
}

func TestParse(t *testing.T) {
	stdout := "/nix/store/aaa-out\n/nix/store/bbb-out\n"
	stderr := `evaluating file '/home/user/project/shell.nix'
copied source '/home/user/project/default.nix' -> '/nix/store/ccc-default.nix'
trace: lorri read: '/home/user/project/default.nix'
trace: lorri attribute: 'shell' -> '/nix/store/ddd-shell'
trace: lorri attribute: 'shell' -> '/nix/store/eee-shell'
these derivations will be built:
  /nix/store/fff.drv
`

	got := parse([]byte(stdout), []byte(stderr))

	want := &Info{
		NamedDrvs: map[string]string{"shell": "/nix/store/eee-shell"},
		Drvs:      []string{"/nix/store/aaa-out", "/nix/store/bbb-out"},
		Paths: []string{
			"/home/user/project/shell.nix",
			"/home/user/project/default.nix",
		},
		LogLines: []string{
			"these derivations will be built:",
			"  /nix/store/fff.drv",
		},
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Info{}, "Success", "ExitCode")); diff != "" {
		t.Errorf("parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyStdoutLinesIgnored(t *testing.T) {
	got := parse([]byte("\n/nix/store/aaa-out\n\n"), nil)
	want := []string{"/nix/store/aaa-out"}
	if diff := cmp.Diff(want, got.Drvs); diff != "" {
		t.Errorf("Drvs mismatch (-want +got):\n%s", diff)
	}
}

// A line longer than the scanner's max token size must not make every
// following line vanish too (spec.md §8: the Parser produces exactly |L|
// classifications for any stderr line sequence L, total, no drops).
func TestParseSurvivesOverlongLine(t *testing.T) {
	overlong := strings.Repeat("x", 2*1024*1024) // well past the 1MB token cap
	stderr := "evaluating file '/a.nix'\n" +
		overlong + "\n" +
		"evaluating file '/b.nix'\n"

	got := parse(nil, []byte(stderr))

	if diff := cmp.Diff([]string{"/a.nix", "/b.nix"}, got.Paths); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}

	var sawOverlong bool
	for _, l := range got.LogLines {
		if strings.Contains(l, overlong[:1024]) {
			sawOverlong = true
		}
	}
	if !sawOverlong {
		t.Errorf("overlong line was dropped instead of preserved as text; LogLines = %d entries", len(got.LogLines))
	}
}

func TestScanLinesNoDrops(t *testing.T) {
	data := []byte("a\n" + strings.Repeat("y", 2*1024*1024) + "\nb\nc\n")
	lines := scanLines(data)

	joined := bytes.Join(lines, []byte("|"))
	if !bytes.Contains(joined, []byte("a|")) || !bytes.HasSuffix(joined, []byte("b|c")) {
		t.Errorf("scanLines dropped lines around the oversized chunk: got %d lines", len(lines))
	}
}
