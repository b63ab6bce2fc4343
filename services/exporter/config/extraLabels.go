package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// JoinKey binds a datapoint field to the metadata field holding the same value
type JoinKey struct {
	Point string `toml:"Point" yaml:"point"`
	Info  string `toml:"Info" yaml:"info"`
}

// JoinKeys is an ordered list of join keys. In YAML it can be written as an ordered mapping
// (datapoint field: metadata field) or as a sequence of names and {point, info} items.
type JoinKeys []JoinKey

// UnmarshalYAML keeps the order of the mapping form
func (keys *JoinKeys) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		result := make(JoinKeys, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			result = append(result, JoinKey{
				Point: node.Content[i].Value,
				Info:  node.Content[i+1].Value,
			})
		}
		*keys = result
		return nil
	case yaml.SequenceNode:
		result := make(JoinKeys, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode {
				result = append(result, JoinKey{Point: item.Value, Info: item.Value})
				continue
			}

			var key JoinKey
			err := item.Decode(&key)
			if err != nil {
				return err
			}
			result = append(result, key)
		}
		*keys = result
		return nil
	default:
		return fmt.Errorf("line %d: keys must be a mapping or a sequence", node.Line)
	}
}

// InfoField returns the metadata field bound to the datapoint field, if any
func (keys JoinKeys) InfoField(point string) (string, bool) {
	for _, key := range keys {
		if key.Point == point {
			return key.Info, true
		}
	}

	return "", false
}

// LabelRef names a metadata field exposed as an extra label, optionally under another name
type LabelRef struct {
	Source string `toml:"Source" yaml:"source"`
	Target string `toml:"Target" yaml:"target"`
}

// Name returns the label name as exposed on the metric
func (ref LabelRef) Name() string {
	if len(ref.Target) > 0 {
		return ref.Target
	}

	return ref.Source
}

// LabelRefs is an ordered list of label references. In YAML each item is either a field name
// or a {field: label} mapping.
type LabelRefs []LabelRef

// UnmarshalYAML accepts plain names and rename mappings
func (refs *LabelRefs) UnmarshalYAML(node *yaml.Node) error {
	var result LabelRefs
	switch node.Kind {
	case yaml.MappingNode:
		result = appendRenames(result, node)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				result = append(result, LabelRef{Source: item.Value})
			case yaml.MappingNode:
				result = appendRenames(result, item)
			default:
				return fmt.Errorf("line %d: label must be a name or a mapping", item.Line)
			}
		}
	default:
		return fmt.Errorf("line %d: labels must be a mapping or a sequence", node.Line)
	}

	*refs = result
	return nil
}

func appendRenames(refs LabelRefs, node *yaml.Node) LabelRefs {
	for i := 0; i+1 < len(node.Content); i += 2 {
		refs = append(refs, LabelRef{
			Source: node.Content[i].Value,
			Target: node.Content[i+1].Value,
		})
	}

	return refs
}

// Names returns the exposed label names in declaration order
func (refs LabelRefs) Names() []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name())
	}

	return names
}

// ExtraLabelSpec declares how the datapoints of a namespace are enriched with metadata labels
type ExtraLabelSpec struct {
	FromInfo string    `toml:"FromInfo" yaml:"fromInfo"`
	Labels   LabelRefs `toml:"Labels" yaml:"labels"`
	Keys     JoinKeys  `toml:"Keys" yaml:"keys"`
}

// IsSet returns true if a resource, at least one label and at least one key are declared
func (spec *ExtraLabelSpec) IsSet() bool {
	return spec != nil && len(spec.FromInfo) > 0 && len(spec.Labels) > 0 && len(spec.Keys) > 0
}
