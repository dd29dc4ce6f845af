package model

import (
	"strconv"
	"strings"
)

// Role classifies an accepted connection inside a session.
type Role string

const (
	// [SINGLETON] At most one live connection per session may carry this role.
	RoleController Role = "controller"
	// [MULTI_INSTANCE] Any number of satellites, each with a distinct id.
	RoleSatellite Role = "satellite"
	// [DIAGNOSTIC] Unauthenticated connections accepted on any other path.
	RoleUnknown Role = "unknown"
)

// ControllerID is the fixed id of the controller connection.
const ControllerID = 0

const (
	rolePrefix = "role:"
	idPrefix   = "id:"
)

// RoleTag encodes a role as a registry tag.
func RoleTag(r Role) string { return rolePrefix + string(r) }

// IDTag encodes a connection id as a registry tag.
func IDTag(id int) string { return idPrefix + strconv.Itoa(id) }

// Tags returns the tag pair describing a participant.
// Unknown connections carry the role tag only.
func (p Participant) Tags() []string {
	tags := []string{RoleTag(p.Role)}
	if p.ID != nil {
		tags = append(tags, IDTag(*p.ID))
	}
	return tags
}

// ParseTags rebuilds a participant from its registry tags.
// Missing or malformed role tags yield RoleUnknown.
func ParseTags(tags []string) Participant {
	p := Participant{Role: RoleUnknown}
	for _, t := range tags {
		switch {
		case strings.HasPrefix(t, rolePrefix):
			p.Role = Role(strings.TrimPrefix(t, rolePrefix))
		case strings.HasPrefix(t, idPrefix):
			if id, err := strconv.Atoi(strings.TrimPrefix(t, idPrefix)); err == nil {
				p.ID = &id
			}
		}
	}
	return p
}
