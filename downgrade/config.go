package downgrade

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file the init command writes.
const DefaultConfigFile = ".jdowngrader.yaml"

const (
	minRelease = 8
	maxRelease = 21
)

// ErrInvalidVersion is returned for a target that is not a Java release
// between 8 and 21.
var ErrInvalidVersion = errors.New("invalid java version")

// Config is the YAML configuration of a run.
type Config struct {
	Name string `yaml:"name"`
	// Target is the release to lower classes to, e.g. "8", "1.8" or "java11".
	Target string `yaml:"target"`
	// Threads bounds the worker pool. Zero uses every CPU.
	Threads int `yaml:"threads,omitempty"`
	// Runtime is a directory or jar holding the shim classes to bundle.
	Runtime string `yaml:"runtime,omitempty"`
	// Libraries are directories or jars consulted for the class hierarchy
	// when stack map frames have to be recomputed. "dir/*" and "dir/**"
	// stand for the jars inside dir.
	Libraries []string `yaml:"libraries,omitempty"`
	// Include and Exclude are class name prefixes, dotted or slashed. An
	// empty Include selects every class; the longest matching prefix wins.
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
	// CacheDir enables the rewritten-class cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	tt.Overrides `yaml:",inline"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Name:   "jdowngrader",
		Target: "8",
	}
}

// LoadConfig reads a YAML configuration. Fields the file omits keep their
// default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}

// WriteConfig writes config as YAML to path.
func WriteConfig(path string, config Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Floor returns the parsed target version.
func (c Config) Floor() (cf.Version, error) {
	return ParseVersion(c.Target)
}

// Workers returns the effective worker pool size.
func (c Config) Workers() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// ParseVersion turns a release name such as "8", "1.8", "java17", "j11"
// or "17.0.2" into the matching class file version.
func ParseVersion(s string) (cf.Version, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"java", "jdk", "j"} {
		if strings.HasPrefix(in, prefix) {
			in = strings.TrimLeft(in[len(prefix):], "-_ ")
			break
		}
	}
	// 1.8.0_202 style update suffixes.
	if i := strings.IndexByte(in, '_'); i > 0 {
		in = in[:i]
	}

	v, err := version.NewVersion(in)
	if err != nil || v.Prerelease() != "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	segs := v.Segments()
	release := segs[0]
	if release == 1 && len(segs) > 1 {
		release = segs[1]
	}
	if release < minRelease || release > maxRelease {
		return 0, fmt.Errorf("%w: %q is outside %d..%d", ErrInvalidVersion, s, minRelease, maxRelease)
	}
	return cf.VersionOf(release), nil
}
