package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"hermannm.dev/wrap"
)

// Named is a descriptor with a name, used where queries are compared side by side.
type Named struct {
	Name  string     `json:"name"`
	Query Descriptor `json:"query"`
}

// QuerySets maps set names to ordered lists of named queries.
type QuerySets map[string][]Named

// LoadQuerySets reads a YAML file of the form:
//
//	set-name:
//	  query-name:
//	    metrics: ga:sessions
//	    dimensions: [ga:pagePath]
//
// The order of queries within each set is kept as written in the file.
func LoadQuerySets(path string) (QuerySets, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to read query set file '%s'", path)
	}

	sets, err := ParseQuerySets(content)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to parse query set file '%s'", path)
	}
	return sets, nil
}

func ParseQuerySets(content []byte) (QuerySets, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(content, &document); err != nil {
		return nil, wrap.Error(err, "invalid YAML")
	}

	sets := make(QuerySets)
	if len(document.Content) == 0 {
		return sets, nil
	}

	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping of query set names at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		setName := root.Content[i].Value
		if _, duplicate := sets[setName]; duplicate {
			return nil, fmt.Errorf("duplicate query set '%s'", setName)
		}

		queries, err := parseNamedQueries(root.Content[i+1])
		if err != nil {
			return nil, wrap.Errorf(err, "invalid query set '%s'", setName)
		}
		sets[setName] = queries
	}

	return sets, nil
}

func parseNamedQueries(node *yaml.Node) ([]Named, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping of query names at line %d", node.Line)
	}

	queries := make([]Named, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if _, duplicate := seen[name]; duplicate {
			return nil, fmt.Errorf("duplicate query '%s'", name)
		}
		seen[name] = struct{}{}

		var params map[string]any
		if err := node.Content[i+1].Decode(&params); err != nil {
			return nil, wrap.Errorf(err, "failed to decode parameters of query '%s'", name)
		}

		descriptor, err := FromParams(params)
		if err != nil {
			return nil, wrap.Errorf(err, "invalid query '%s'", name)
		}

		queries = append(queries, Named{Name: name, Query: descriptor})
	}

	return queries, nil
}
