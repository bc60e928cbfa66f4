package mqtt

import (
	"errors"
	"fmt"
	"strings"

	"thermonode/backend/pkg/generate"
)

// topicPattern is a parsed topic such as devices/{deviceID}/temperature.
// Each level is either a literal or a named parameter; MQTT wildcards are not accepted.
type topicPattern struct {
	raw    string
	levels []topicLevel
}

type topicLevel struct {
	text  string
	param bool
}

func parseTopic(raw string) (topicPattern, error) {
	if raw == "" {
		return topicPattern{}, errors.New("topic is empty")
	}

	parts := strings.Split(raw, "/")
	p := topicPattern{raw: raw, levels: make([]topicLevel, 0, len(parts))}
	seen := map[string]bool{}

	for i, part := range parts {
		switch {
		case part == "":
			return topicPattern{}, fmt.Errorf("level %d of %q is empty", i, raw)
		case strings.ContainsAny(part, "+#"):
			return topicPattern{}, fmt.Errorf("level %q uses a wildcard, name it as {param} instead", part)
		}

		inner, ok := strings.CutPrefix(part, "{")
		if ok {
			name, closed := strings.CutSuffix(inner, "}")
			if !closed || !generate.IsValidParameterName(name) {
				return topicPattern{}, fmt.Errorf("level %q is not a valid {param}", part)
			}

			if seen[name] {
				return topicPattern{}, fmt.Errorf("parameter %s repeated in %q", name, raw)
			}

			seen[name] = true
			p.levels = append(p.levels, topicLevel{text: name, param: true})

			continue
		}

		if strings.ContainsAny(part, "{}") {
			return topicPattern{}, fmt.Errorf("level %q has a stray brace", part)
		}

		p.levels = append(p.levels, topicLevel{text: part})
	}

	return p, nil
}

// params returns the parameter names in topic order.
func (p topicPattern) params() []string {
	var names []string

	for _, lvl := range p.levels {
		if lvl.param {
			names = append(names, lvl.text)
		}
	}

	return names
}

// wildcard renders the pattern with every parameter replaced by '+'.
func (p topicPattern) wildcard() string {
	out := make([]string, len(p.levels))

	for i, lvl := range p.levels {
		out[i] = lvl.text
		if lvl.param {
			out[i] = "+"
		}
	}

	return strings.Join(out, "/")
}

func (p topicPattern) expand(values map[string]string) (string, error) {
	out := make([]string, len(p.levels))

	for i, lvl := range p.levels {
		if !lvl.param {
			out[i] = lvl.text
			continue
		}

		v, ok := values[lvl.text]
		switch {
		case !ok:
			return "", fmt.Errorf("no value for topic parameter %s", lvl.text)
		case v == "" || strings.ContainsAny(v, "/+#"):
			return "", fmt.Errorf("value %q for topic parameter %s is not a single topic level", v, lvl.text)
		}

		out[i] = v
	}

	return strings.Join(out, "/"), nil
}

// matches reports whether topic is a concrete expansion of the pattern.
func (p topicPattern) matches(topic string) bool {
	parts := strings.Split(topic, "/")
	if len(parts) != len(p.levels) {
		return false
	}

	for i, lvl := range p.levels {
		if parts[i] == "" || (!lvl.param && parts[i] != lvl.text) {
			return false
		}
	}

	return true
}

// ExpandTopic fills every {param} level of pattern from params.
func ExpandTopic(pattern string, params map[string]string) (string, error) {
	p, err := parseTopic(pattern)
	if err != nil {
		return "", err
	}

	return p.expand(params)
}

func (q QoS) valid() bool {
	return q <= QoSExactlyOnce
}

// topicParameters checks that the documented parameters and the ones in the pattern are the same set.
func topicParameters(p topicPattern, documented []TopicParameter) ([]generate.MQTTTopicParameter, error) {
	inTopic := map[string]bool{}
	for _, name := range p.params() {
		inTopic[name] = false
	}

	out := make([]generate.MQTTTopicParameter, 0, len(documented))

	for _, tp := range documented {
		switch {
		case tp.Name == "":
			return nil, errors.New("topic parameter without a name")
		case tp.Description == "":
			return nil, fmt.Errorf("topic parameter %s needs a Description", tp.Name)
		case tp.Type == nil:
			return nil, fmt.Errorf("topic parameter %s needs a Type", tp.Name)
		}

		if _, ok := inTopic[tp.Name]; !ok {
			return nil, fmt.Errorf("topic parameter %s does not appear in %s", tp.Name, p.raw)
		}

		inTopic[tp.Name] = true

		out = append(out, generate.MQTTTopicParameter{
			Name:        tp.Name,
			TypeValue:   tp.Type,
			Description: tp.Description,
		})
	}

	for name, doc := range inTopic {
		if !doc {
			return nil, fmt.Errorf("topic parameter %s is not documented", name)
		}
	}

	return out, nil
}

func checkPublicationSpec(spec PublicationSpec) error {
	var missing []string

	if spec.OperationID == "" {
		missing = append(missing, "OperationID")
	}

	if spec.Summary == "" {
		missing = append(missing, "Summary")
	}

	if spec.Group == "" {
		missing = append(missing, "Group")
	}

	if spec.MessageType == nil {
		missing = append(missing, "MessageType")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	if !spec.QoS.valid() {
		return fmt.Errorf("qos %d is not 0, 1 or 2", spec.QoS)
	}

	return nil
}
