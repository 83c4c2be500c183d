package resolver

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/filter"
	"github.com/yarmol/bnd/pkg/version"
)

// RunModel is the parsed runfile: what to resolve, against which
// repositories, under which selection policy.
type RunModel struct {
	// Framework designates the base runtime resource. Optional; without it
	// the mandatory set is just the synthetic input resource.
	Framework *FrameworkSpec `toml:"framework"`

	// Requires are the top-level requirements seeding the resolution.
	Requires []RequirementSpec `toml:"require"`

	// Blacklist excludes resources from every candidate list. Entries are
	// namespace+filter requirements evaluated against a candidate
	// resource's own capabilities.
	Blacklist []RequirementSpec `toml:"blacklist"`

	// Preferences is an ordered list of identity glob patterns; candidates
	// matching an earlier pattern rank ahead of later or unmatched ones.
	Preferences []string `toml:"preferences"`

	// EffectiveTags are additional effective tags that participate in
	// resolution, each with a per-namespace skip set.
	EffectiveTags []EffectiveTag `toml:"effective"`

	// Environment grants execution-environment capabilities to the
	// framework, as "name/version" entries.
	Environment []string `toml:"environment"`

	// SystemPackages and SystemCapabilities grant extra capabilities to
	// the framework resource.
	SystemPackages     []SystemPackage  `toml:"system-package"`
	SystemCapabilities []CapabilitySpec `toml:"system-capability"`

	// Repositories names the repositories to consult, in order.
	Repositories []string `toml:"repositories"`
}

// FrameworkSpec selects the framework resource by identity and version range.
type FrameworkSpec struct {
	Identity string `toml:"identity"`
	Range    string `toml:"range"`
}

// RequirementSpec is a requirement declared in the runfile.
type RequirementSpec struct {
	Namespace  string `toml:"namespace"`
	Filter     string `toml:"filter"`
	Resolution string `toml:"resolution"`
	Effective  string `toml:"effective"`
}

// Requirement converts the spec to a standalone model requirement.
func (s RequirementSpec) Requirement() *capability.Requirement {
	dirs := make(map[string]string)
	if s.Filter != "" {
		dirs[capability.DirectiveFilter] = s.Filter
	}
	if s.Resolution != "" {
		dirs[capability.DirectiveResolution] = s.Resolution
	}
	if s.Effective != "" {
		dirs[capability.DirectiveEffective] = s.Effective
	}
	return capability.NewRequirement(s.Namespace, dirs)
}

// EffectiveTag enables requirements carrying the tag, except in the listed
// namespaces.
type EffectiveTag struct {
	Tag  string   `toml:"tag"`
	Skip []string `toml:"skip"`
}

// SystemPackage grants one package capability to the framework.
type SystemPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// CapabilitySpec is an arbitrary capability declared in the runfile.
type CapabilitySpec struct {
	Namespace  string            `toml:"namespace"`
	Attributes map[string]any    `toml:"attributes"`
	Directives map[string]string `toml:"directives"`
}

// ParseRunModel decodes and validates a TOML runfile.
func ParseRunModel(data []byte) (*RunModel, error) {
	var m RunModel
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRunfile, err, "parse runfile")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadRunFile reads and parses a runfile from disk.
func LoadRunFile(path string) (*RunModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read runfile %s", path)
	}
	return ParseRunModel(data)
}

// Validate checks the model for structural problems: missing namespaces,
// unparseable filters and ranges, malformed grants.
func (m *RunModel) Validate() error {
	if m.Framework != nil {
		if m.Framework.Identity == "" {
			return errors.New(errors.ErrCodeInvalidRunfile, "framework requires an identity")
		}
		if _, err := version.ParseRange(m.Framework.Range); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRunfile, err, "framework range")
		}
	}
	for i, spec := range m.Requires {
		if err := validateRequirementSpec(spec); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRunfile, err, "require[%d]", i)
		}
	}
	for i, spec := range m.Blacklist {
		if err := validateRequirementSpec(spec); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRunfile, err, "blacklist[%d]", i)
		}
	}
	for i, tag := range m.EffectiveTags {
		if tag.Tag == "" {
			return errors.New(errors.ErrCodeInvalidRunfile, "effective[%d] requires a tag", i)
		}
	}
	for i, env := range m.Environment {
		if _, _, err := parseEnvironmentGrant(env); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRunfile, err, "environment[%d]", i)
		}
	}
	for i, sp := range m.SystemPackages {
		if sp.Name == "" {
			return errors.New(errors.ErrCodeInvalidRunfile, "system-package[%d] requires a name", i)
		}
		if sp.Version != "" {
			if _, err := version.Parse(sp.Version); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidRunfile, err, "system-package[%d]", i)
			}
		}
	}
	for i, sc := range m.SystemCapabilities {
		if sc.Namespace == "" {
			return errors.New(errors.ErrCodeInvalidRunfile, "system-capability[%d] requires a namespace", i)
		}
	}
	return nil
}

func validateRequirementSpec(spec RequirementSpec) error {
	if spec.Namespace == "" {
		return errors.New(errors.ErrCodeInvalidRunfile, "requirement needs a namespace")
	}
	if spec.Filter != "" {
		if _, err := filter.Parse(spec.Filter); err != nil {
			return err
		}
	}
	return nil
}

// parseEnvironmentGrant splits a "name/version" grant. The version part is
// optional.
func parseEnvironmentGrant(s string) (string, version.Version, error) {
	name, ver, found := strings.Cut(s, "/")
	if name == "" {
		return "", version.Version{}, errors.New(errors.ErrCodeInvalidRunfile, "environment grant %q requires a name", s)
	}
	if !found || ver == "" {
		return name, version.Version{}, nil
	}
	v, err := version.Parse(ver)
	if err != nil {
		return "", version.Version{}, err
	}
	return name, v, nil
}
