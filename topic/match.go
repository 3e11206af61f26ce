// Package topic implements MQTT topic name and topic filter matching,
// section 4.7 of the protocol.
package topic

import (
	"fmt"
	"strings"
)

// Match reports whether name, a published topic name, is matched by filter,
// a subscription's topic filter. It walks both strings split on "/" one
// level at a time: "+" consumes exactly one level, "#" (only legal as the
// final level) consumes the rest of name including zero additional levels.
func Match(filter, name string) bool {
	if filter == name {
		return true
	}
	if strings.HasPrefix(name, "$") && !strings.HasPrefix(filter, "$") {
		// section 4.7.2: a "+" or "#" in the first level never matches a
		// topic name beginning with "$".
		return false
	}

	filterLevels := strings.Split(filter, "/")
	nameLevels := strings.Split(name, "/")

	for i, f := range filterLevels {
		if f == "#" {
			return true
		}
		if i >= len(nameLevels) {
			return false
		}
		if f != "+" && f != nameLevels[i] {
			return false
		}
	}
	return len(filterLevels) == len(nameLevels)
}

// ValidateTopicName reports whether name is a legal topic name for a
// PUBLISH packet: non-empty and free of the wildcard characters. UTF-8
// validity and length are not checked here.
func ValidateTopicName(name string) error {
	if name == "" {
		return fmt.Errorf("topic: empty topic name")
	}
	if strings.ContainsAny(name, "+#") {
		return fmt.Errorf("topic: %q: wildcards not allowed in a topic name", name)
	}
	return nil
}

// ValidateTopicFilter reports whether filter is legal for a SUBSCRIBE or
// UNSUBSCRIBE packet, section 4.7.1: non-empty, at most 65,535 bytes, and
// "+"/"#" only occupy a whole level, with "#" only as the last level.
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("topic: empty topic filter")
	}
	if len(filter) > 0xFFFF {
		return fmt.Errorf("topic: filter is %d bytes, longer than 65,535", len(filter))
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "+", level == "#":
			if level == "#" && i != len(levels)-1 {
				return fmt.Errorf("topic: %q: \"#\" must be the last level", filter)
			}
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("topic: %q: \"+\" and \"#\" must occupy a whole level", filter)
		}
	}
	return nil
}
