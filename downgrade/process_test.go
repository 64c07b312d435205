package downgrade

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	runtimeShim = "jdowngrader/runtime/java/lang/Runtime"
	versionShim = "jdowngrader/runtime/java/lang/Runtime$Version"
)

func classBytes(t *testing.T, name string, version cf.Version, methods ...*cf.Method) []byte {
	t.Helper()
	c := &cf.Class{
		Version: version,
		Access:  cf.ACC_PUBLIC | cf.ACC_SUPER,
		Name:    name,
		Super:   "java/lang/Object",
		Methods: methods,
	}
	data, err := cf.Write(c, cf.WriteOptions{})
	require.NoError(t, err)
	return data
}

func static(name, desc string, insns ...cf.Insn) *cf.Method {
	m := cf.NewMethod(cf.ACC_PUBLIC|cf.ACC_STATIC, name, desc)
	m.Emit(insns...)
	return m
}

// usesListOf returns a class whose only method calls List.of().
func usesListOf(t *testing.T, name string, version cf.Version) []byte {
	return classBytes(t, name, version, static("empty", "()Ljava/util/List;",
		cf.Invoke(cf.INVOKESTATIC, "java/util/List", "of", "()Ljava/util/List;", true),
		cf.Op(cf.ARETURN)))
}

// usesRuntimeVersion returns a class needing the Runtime shims.
func usesRuntimeVersion(t *testing.T, name string) []byte {
	return classBytes(t, name, cf.V11, static("version", "()Ljava/lang/Object;",
		cf.Invoke(cf.INVOKESTATIC, "java/lang/Runtime", "version", "()Ljava/lang/Runtime$Version;", false),
		cf.Op(cf.ARETURN)))
}

var brokenClass = []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 55, 1, 2, 3}

type entry struct {
	name string
	data []byte
}

func makeJar(t *testing.T, path string, entries ...entry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, e := range entries {
		ew, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = ew.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func readJar(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = data
	}
	return out
}

// runtimeDir holds the Runtime shim but not Runtime$Version.
func runtimeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, filepath.FromSlash(runtimeShim)+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, classBytes(t, runtimeShim, cf.V1_8), 0o644))
	return dir
}

func newTransformer(t *testing.T, config Config) *Transformer {
	t.Helper()
	if config.Target == "" {
		config.Target = "8"
	}
	tr, err := NewTransformer(config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func classVersion(t *testing.T, data []byte) cf.Version {
	t.Helper()
	v, _, err := cf.PeekVersion(data)
	require.NoError(t, err)
	return v
}

func TestTransformClass(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, Config{Exclude: []string{"com/acme/keep"}})

	tests := []struct {
		name    string
		class   string
		data    []byte
		want    Outcome
		wantErr bool
	}{
		{"lowered", "com/acme/A", usesListOf(t, "com/acme/A", cf.V11), Transformed, false},
		{"already old", "com/acme/B", usesListOf(t, "com/acme/B", cf.V1_8), Unchanged, false},
		{"excluded", "com/acme/keep/C", usesListOf(t, "com/acme/keep/C", cf.V11), Skipped, false},
		{"broken", "com/acme/D", brokenClass, Failed, true},
		{"too new", "com/acme/E", usesListOf(t, "com/acme/E", cf.V22), Failed, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, outcome, err := tr.TransformClass(tc.class, tc.data)
			assert.Equal(t, tc.want, outcome)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if outcome != Transformed {
				assert.Equal(t, tc.data, out)
				return
			}
			assert.Equal(t, cf.V1_8, classVersion(t, out))
			c, err := cf.Parse(out)
			require.NoError(t, err)
			for _, in := range c.Methods[0].Code.Insns {
				if mi, ok := in.(*cf.MethodInsn); ok {
					assert.False(t, mi.Owner == "java/util/List" && mi.Name == "of")
				}
			}
		})
	}
}

func TestSelected(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, Config{
		Include: []string{"com/acme", "com/acme/internal/keep"},
		Exclude: []string{"com/acme/internal"},
	})
	tests := []struct {
		name string
		want bool
	}{
		{"com/acme/Api", true},
		{"com/acme/internal/Impl", false},
		{"com/acme/internal/keep/Kept", true},
		{"org/other/Thing", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tr.Selected(tc.name), tc.name)
	}

	all := newTransformer(t, Config{Exclude: []string{"org.slf4j"}})
	assert.True(t, all.Selected("com/acme/Api"))
	assert.False(t, all.Selected("org/slf4j/Logger"))
}

func TestProcessJar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "app.jar")
	out := filepath.Join(dir, "app-8.jar")
	old := usesListOf(t, "app/Old", cf.V1_8)
	makeJar(t, in,
		entry{"META-INF/MANIFEST.MF", []byte("Manifest-Version: 1.0\n")},
		entry{"META-INF/APP.SF", []byte("signature")},
		entry{"META-INF/versions/11/app/Main.class", usesListOf(t, "app/Main", cf.V11)},
		entry{"app/Main.class", usesListOf(t, "app/Main", cf.V11)},
		entry{"app/Version.class", usesRuntimeVersion(t, "app/Version")},
		entry{"app/Old.class", old},
		entry{"app/Broken.class", brokenClass},
		entry{"app/config.properties", []byte("k=v\n")},
	)

	tr := newTransformer(t, Config{Runtime: runtimeDir(t), Threads: 2})
	report, err := ProcessJar(context.Background(), nil, tr, in, out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Transformed)
	assert.Equal(t, 1, report.Unchanged)
	require.Equal(t, 1, report.Failed())
	assert.Equal(t, "app/Broken", report.Failures[0].Class)
	assert.Equal(t, 2, report.Resources)
	assert.Equal(t, []string{runtimeShim}, report.Shims)
	assert.Equal(t, []string{versionShim}, report.Missing)
	assert.Positive(t, report.Replaced)

	got := readJar(t, out)
	names := make([]string, 0, len(got))
	for n := range got {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"META-INF/MANIFEST.MF",
		"app/Broken.class",
		"app/Main.class",
		"app/Old.class",
		"app/Version.class",
		"app/config.properties",
		runtimeShim + ".class",
	}, names)

	assert.Equal(t, cf.V1_8, classVersion(t, got["app/Main.class"]))
	assert.Equal(t, cf.V1_8, classVersion(t, got["app/Version.class"]))
	assert.Equal(t, old, got["app/Old.class"])
	assert.Equal(t, brokenClass, got["app/Broken.class"])
	assert.Equal(t, "k=v\n", string(got["app/config.properties"]))

	v, err := cf.Parse(got["app/Version.class"])
	require.NoError(t, err)
	var owner string
	for _, in := range v.Methods[0].Code.Insns {
		if mi, ok := in.(*cf.MethodInsn); ok {
			owner = mi.Owner
		}
	}
	assert.Equal(t, runtimeShim, owner)
}

func TestProcessJarInPlace(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "lib.jar")
	makeJar(t, in, entry{"lib/A.class", usesListOf(t, "lib/A", cf.V17)})

	tr := newTransformer(t, Config{Target: "11"})
	report, err := ProcessPath(context.Background(), nil, tr, in, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transformed)
	assert.Equal(t, cf.V11, classVersion(t, readJar(t, in)["lib/A.class"]))
}

func TestProcessDir(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	files := map[string][]byte{
		"app/Main.class":                      usesListOf(t, "app/Main", cf.V11),
		"app/Version.class":                   usesRuntimeVersion(t, "app/Version"),
		"app/res.txt":                         []byte("text"),
		"META-INF/versions/11/app/Main.class": usesListOf(t, "app/Main", cf.V11),
	}
	for name, data := range files {
		path := filepath.Join(in, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	tr := newTransformer(t, Config{Runtime: runtimeDir(t)})
	report, err := ProcessPath(context.Background(), nil, tr, in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Transformed)
	assert.Equal(t, 1, report.Resources)
	assert.Equal(t, []string{runtimeShim}, report.Shims)

	data, err := os.ReadFile(filepath.Join(out, "app", "Main.class"))
	require.NoError(t, err)
	assert.Equal(t, cf.V1_8, classVersion(t, data))

	_, err = os.Stat(filepath.Join(out, filepath.FromSlash(runtimeShim)+".class"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "META-INF", "versions"))
	assert.True(t, os.IsNotExist(err))
	res, err := os.ReadFile(filepath.Join(out, "app", "res.txt"))
	require.NoError(t, err)
	assert.Equal(t, "text", string(res))
}

func TestProcessShimsPerInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.jar")
	b := filepath.Join(dir, "b.jar")
	makeJar(t, a, entry{"app/Version.class", usesRuntimeVersion(t, "app/Version")})
	makeJar(t, b, entry{"lib/Main.class", usesListOf(t, "lib/Main", cf.V11)})
	cacheDir := t.TempDir()

	tr := newTransformer(t, Config{Runtime: runtimeDir(t), CacheDir: cacheDir})
	reportA, err := ProcessJar(context.Background(), nil, tr, a, filepath.Join(dir, "a8.jar"))
	require.NoError(t, err)
	assert.Equal(t, []string{runtimeShim}, reportA.Shims)
	assert.Equal(t, []string{versionShim}, reportA.Missing)

	reportB, err := ProcessJar(context.Background(), nil, tr, b, filepath.Join(dir, "b8.jar"))
	require.NoError(t, err)
	assert.Equal(t, 1, reportB.Transformed)
	assert.Empty(t, reportB.Shims)
	assert.Empty(t, reportB.Missing)
	assert.NotContains(t, readJar(t, filepath.Join(dir, "b8.jar")), runtimeShim+".class")

	single := filepath.Join(dir, "Main.class")
	require.NoError(t, os.WriteFile(single, usesListOf(t, "lib/Main", cf.V11), 0o644))
	reportC, err := ProcessClassFile(nil, tr, single, filepath.Join(dir, "out", "Main.class"))
	require.NoError(t, err)
	assert.Empty(t, reportC.Missing)
	assert.Equal(t, []string{runtimeShim, versionShim}, tr.Deps())
	require.NoError(t, tr.Close())

	// Cache hits replay the dependencies into the run that hit them.
	cached := newTransformer(t, Config{Runtime: runtimeDir(t), CacheDir: cacheDir})
	reportD, err := ProcessJar(context.Background(), nil, cached, a, filepath.Join(dir, "a8-again.jar"))
	require.NoError(t, err)
	assert.Equal(t, []string{runtimeShim}, reportD.Shims)
	assert.Contains(t, readJar(t, filepath.Join(dir, "a8-again.jar")), runtimeShim+".class")
}

func TestProcessClassFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "Version.class")
	out := filepath.Join(dir, "out", "Version.class")
	require.NoError(t, os.WriteFile(in, usesRuntimeVersion(t, "app/Version"), 0o644))

	tr := newTransformer(t, Config{})
	report, err := ProcessPath(context.Background(), nil, tr, in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transformed)
	assert.ElementsMatch(t, []string{runtimeShim, versionShim}, report.Missing)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, cf.V1_8, classVersion(t, data))
}

func TestProcessCancelled(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "app.jar")
	makeJar(t, in, entry{"app/Main.class", usesListOf(t, "app/Main", cf.V11)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := newTransformer(t, Config{})
	_, err := ProcessJar(ctx, nil, tr, in, filepath.Join(t.TempDir(), "out.jar"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformerCache(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()
	data := usesRuntimeVersion(t, "app/Version")

	first := newTransformer(t, Config{CacheDir: cacheDir})
	out1, outcome, err := first.TransformClass("app/Version", data)
	require.NoError(t, err)
	require.Equal(t, Transformed, outcome)
	require.NoError(t, first.Close())

	second := newTransformer(t, Config{CacheDir: cacheDir})
	out2, outcome, err := second.TransformClass("app/Version", data)
	require.NoError(t, err)
	assert.Equal(t, Transformed, outcome)
	assert.Equal(t, out1, out2)
	assert.Equal(t, []string{runtimeShim, versionShim}, second.Deps())

	// A different rule set must not reuse the entry.
	other := newTransformer(t, Config{CacheDir: cacheDir})
	other.engine.IgnoreRule("java/lang/Runtime;version")
	out3, _, err := other.TransformClass("app/Version", data)
	require.NoError(t, err)
	assert.NotEqual(t, out1, out3)
}

func TestNewTransformerErrors(t *testing.T) {
	t.Parallel()

	_, err := NewTransformer(Config{Target: "6"}, nil)
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = NewTransformer(Config{Target: "8", Runtime: filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Error(t, err)

	cfg := Config{Target: "8"}
	cfg.DisabledSteps = []string{"java9-to-java8"}
	_, err = NewTransformer(cfg, nil)
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, Config{})
	info, err := Inspect(tr.Engine(), usesListOf(t, "app/Main", cf.V11))
	require.NoError(t, err)
	assert.Equal(t, "app/Main", info.Name)
	assert.Equal(t, 11, info.Release)
	assert.Equal(t, 1, info.Methods)
	require.Len(t, info.Calls, 1)
	assert.Equal(t, CallSite{
		Method: "empty()Ljava/util/List;",
		Call:   "java/util/List;of()Ljava/util/List;",
		Step:   "java9-to-java8",
	}, info.Calls[0])

	_, err = Inspect(tr.Engine(), brokenClass)
	assert.Error(t, err)
}

func TestTransformerLibraryWildcard(t *testing.T) {
	t.Parallel()

	data, err := cf.Write(&cf.Class{
		Version: cf.V11,
		Access:  cf.ACC_PUBLIC | cf.ACC_SUPER,
		Name:    "lib/Failure",
		Super:   "java/lang/RuntimeException",
	}, cf.WriteOptions{})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "libs")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	makeJar(t, filepath.Join(dir, "nested", "failure.jar"), entry{"lib/Failure.class", data})

	tr := newTransformer(t, Config{Libraries: []string{dir + "/*"}})
	_, _, ok := tr.Hierarchy().SuperClass("lib/Failure")
	assert.False(t, ok, "a single star does not descend")

	tr = newTransformer(t, Config{Libraries: []string{dir + "/**"}})
	super, isInterface, ok := tr.Hierarchy().SuperClass("lib/Failure")
	require.True(t, ok)
	assert.Equal(t, "java/lang/RuntimeException", super)
	assert.False(t, isInterface)
}
