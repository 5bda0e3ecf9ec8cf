package mqtt

import "strings"

// Match reports whether topic matches the MQTT filter and returns the levels
// captured by single-level '+' wildcards, in order.
func Match(filter, topic string) ([]string, bool) {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	var captured []string
	for i, f := range fl {
		if f == "#" {
			return captured, i == len(fl)-1
		}
		if i >= len(tl) {
			return nil, false
		}
		switch f {
		case "+":
			captured = append(captured, tl[i])
		default:
			if f != tl[i] {
				return nil, false
			}
		}
	}
	if len(fl) != len(tl) {
		return nil, false
	}
	return captured, true
}

// Expand replaces {id} in a topic template.
func Expand(template, id string) string {
	return strings.ReplaceAll(template, "{id}", id)
}
