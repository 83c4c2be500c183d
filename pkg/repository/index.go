package repository

import (
	"encoding/json"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/version"
)

// Index is the serialized form of a repository: resources with their
// capabilities, requirements and content locations.
type Index struct {
	Name      string          `json:"name" bson:"name"`
	Resources []IndexResource `json:"resources" bson:"resources"`
}

// IndexResource describes one resource in an index.
type IndexResource struct {
	Capabilities []IndexCapReq `json:"capabilities" bson:"capabilities"`
	Requirements []IndexCapReq `json:"requirements,omitempty" bson:"requirements,omitempty"`

	// Location is where the resource content can be fetched from,
	// relative to the index for file and HTTP repositories.
	Location string `json:"location,omitempty" bson:"location,omitempty"`
}

// IndexCapReq is a serialized capability or requirement.
type IndexCapReq struct {
	Namespace  string            `json:"namespace" bson:"namespace"`
	Attributes map[string]any    `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Directives map[string]string `json:"directives,omitempty" bson:"directives,omitempty"`
}

// ParseIndex decodes a JSON index document.
func ParseIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "parse index")
	}
	return &idx, nil
}

// Build converts a serialized resource into the immutable model form.
// String version attributes are parsed into typed versions so filters
// compare them numerically.
func (ir IndexResource) Build() (*capability.Resource, error) {
	b := capability.NewBuilder()
	for _, c := range ir.Capabilities {
		attrs, err := typeAttributes(c.Attributes)
		if err != nil {
			return nil, err
		}
		b.AddCapability(c.Namespace, attrs, c.Directives)
	}
	for _, r := range ir.Requirements {
		b.AddRequirement(r.Namespace, r.Directives)
	}
	return b.Build(), nil
}

// typeAttributes copies attrs, converting the version attribute from its
// wire string form.
func typeAttributes(attrs map[string]any) (map[string]any, error) {
	if attrs == nil {
		return nil, nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k == capability.AttrVersion {
			if s, ok := v.(string); ok {
				pv, err := version.Parse(s)
				if err != nil {
					return nil, err
				}
				out[k] = pv
				continue
			}
		}
		out[k] = v
	}
	return out, nil
}
