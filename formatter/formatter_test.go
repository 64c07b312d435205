package formatter

import (
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gnolang/jdowngrader/downgrade"
	"github.com/gnolang/jdowngrader/internal"
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestFormatReport(t *testing.T) {
	t.Parallel()

	report := &downgrade.Report{
		Input:       "app.jar",
		Output:      "out.jar",
		Transformed: 2,
		Unchanged:   1,
		Failures:    []downgrade.Failure{{Class: "app/Broken", Error: "bad magic"}},
		Replaced:    3,
		Shims:       []string{"jdowngrader/runtime/java/lang/Runtime"},
		Missing:     []string{"jdowngrader/runtime/java/util/Foo"},
		Duration:    1500 * time.Millisecond,
	}

	expected := `app.jar --> out.jar
  transformed:  2
  unchanged:    1
  skipped:      0
  failed:       1
  replaced:     3
  shims:        1
  duration:     1.5s
error: app/Broken
  = bad magic
warning: missing runtime shim jdowngrader/runtime/java/util/Foo
`
	assert.Equal(t, expected, FormatReport(report))
}

func TestFormatReportResources(t *testing.T) {
	t.Parallel()

	out := FormatReport(&downgrade.Report{Input: "classes", Output: "out", Resources: 4})
	assert.Contains(t, out, "  resources:    4\n")
	assert.NotContains(t, out, "error:")
	assert.NotContains(t, out, "shims:")
}

func TestFormatSteps(t *testing.T) {
	t.Parallel()

	steps := []internal.StepInfo{
		{Name: "java10-to-java9", Source: cf.V10, Target: cf.V9, Rules: []string{"a", "b"}, Members: 1, Hooks: 2},
		{Name: "java9-to-java8", Source: cf.V9, Target: cf.V1_8, Rules: []string{"c"}, Disabled: true},
	}

	tests := []struct {
		name     string
		verbose  bool
		expected string
	}{
		{
			name:    "summary",
			verbose: false,
			expected: `java10-to-java9  10 -> 9  2 rules, 1 members, 0 remaps, 2 hooks
java9-to-java8   9 -> 8  1 rules, 0 members, 0 remaps, 0 hooks  disabled
`,
		},
		{
			name:    "verbose",
			verbose: true,
			expected: `java10-to-java9  10 -> 9  2 rules, 1 members, 0 remaps, 2 hooks
    a
    b
java9-to-java8   9 -> 8  1 rules, 0 members, 0 remaps, 0 hooks  disabled
    c
`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, FormatSteps(steps, tt.verbose))
		})
	}
}

func TestFormatClass(t *testing.T) {
	t.Parallel()

	info := downgrade.ClassInfo{
		Name:       "app/Main",
		Release:    11,
		Super:      "java/lang/Object",
		Interfaces: []string{"java/lang/Runnable"},
		Methods:    1,
		Indy:       map[string]int{"java/lang/invoke/LambdaMetafactory.metafactory": 2},
		Calls: []downgrade.CallSite{{
			Method: "run()V",
			Call:   "java/util/List;of()Ljava/util/List;",
			Step:   "java9-to-java8",
		}},
	}

	expected := `app/Main (java 11)
  super:        java/lang/Object
  interfaces:   java/lang/Runnable
  fields:       0
  methods:      1
  indy:         java/lang/invoke/LambdaMetafactory.metafactory x2
rewrites:
  run()V --> java/util/List;of()Ljava/util/List; [java9-to-java8]
`
	assert.Equal(t, expected, FormatClass(info))
}

func TestFormatClassPreviewRecord(t *testing.T) {
	t.Parallel()

	out := FormatClass(downgrade.ClassInfo{
		Name:      "app/Point",
		Release:   16,
		Preview:   true,
		Super:     "java/lang/Record",
		Record:    true,
		NestHost:  "app/Outer",
		Permitted: []string{"app/A", "app/B"},
	})
	assert.Contains(t, out, "app/Point (java 16, preview)\n")
	assert.Contains(t, out, "  record:       yes\n")
	assert.Contains(t, out, "  nest host:    app/Outer\n")
	assert.Contains(t, out, "  permits:      app/A, app/B\n")
	assert.NotContains(t, out, "rewrites:")
}
