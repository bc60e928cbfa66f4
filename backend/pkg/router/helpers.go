package router

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"thermonode/backend/pkg/generate"
)

// validateRouteSpec validates a RouteSpec.
func validateRouteSpec(spec RouteSpec) error {
	if spec.OperationID == "" {
		return errors.New("field OperationID required")
	}

	if spec.Summary == "" {
		return errors.New("field Summary required")
	}

	if spec.Group == "" {
		return errors.New("field Group required")
	}

	if spec.Handler == nil {
		return errors.New("field Handler required")
	}

	if len(spec.Responses) == 0 {
		return errors.New("field Responses requires at least one entry")
	}

	return nil
}

// generateParameters checks that every {param} in the path is documented, and the reverse,
// and converts the specs to collector metadata in name order.
func generateParameters(spec RouteSpec) ([]generate.ParameterInfo, error) {
	paramsInPath := map[string]struct{}{}

	for section := range strings.SplitSeq(spec.fullPath, "/") {
		names, err := generate.ExtractParamName(section)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", spec.fullPath, err)
		}

		for _, name := range names {
			if !generate.IsValidParameterName(name) {
				return nil, fmt.Errorf("invalid parameter name %s in path %s", name, spec.fullPath)
			}

			paramsInPath[name] = struct{}{}
		}
	}

	validIn := []ParameterIn{ParameterInPath, ParameterInQuery, ParameterInHeader}
	parameters := make([]generate.ParameterInfo, 0, len(spec.Parameters))
	documented := map[string]struct{}{}

	names := make([]string, 0, len(spec.Parameters))
	for name := range spec.Parameters {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		p := spec.Parameters[name]

		switch {
		case name == "":
			return nil, fmt.Errorf("parameter name required for %s %s", spec.method, spec.fullPath)
		case p.Description == "":
			return nil, fmt.Errorf("parameter %s Description required for %s %s", name, spec.method, spec.fullPath)
		case p.Type == nil:
			return nil, fmt.Errorf("parameter %s Type required for %s %s", name, spec.method, spec.fullPath)
		case !slices.Contains(validIn, p.In):
			return nil, fmt.Errorf("parameter %s In must be one of %v", name, validIn)
		}

		if p.In == ParameterInPath {
			if _, ok := paramsInPath[name]; !ok {
				return nil, fmt.Errorf("documented path parameter %s not found in path", name)
			}

			if !p.Required {
				return nil, fmt.Errorf("path parameter %s must be required", name)
			}

			documented[name] = struct{}{}
		}

		parameters = append(parameters, generate.ParameterInfo{
			Name:        name,
			In:          string(p.In),
			TypeValue:   p.Type,
			Description: p.Description,
			Required:    p.Required,
		})
	}

	for name := range paramsInPath {
		if _, ok := documented[name]; !ok {
			return nil, fmt.Errorf("path parameter %s not documented", name)
		}
	}

	return parameters, nil
}
