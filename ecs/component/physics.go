package component

import (
	"fmt"
	"strings"

	"github.com/milk9111/physync/physics/backend"
)

// RigidBody declares how the physics backend treats an entity. An entity
// needs both a RigidBody and a CollisionShape to get a backend body.
type RigidBody uint8

const (
	// Dynamic bodies are moved by forces, gravity and contacts.
	Dynamic RigidBody = iota
	// Static bodies never move unless their Transform is changed.
	Static
	// Sensor bodies are static and report contacts without responding to them.
	Sensor
	// KinematicPositionBased bodies follow their Transform every frame.
	KinematicPositionBased
	// KinematicVelocityBased bodies follow their Velocity every frame.
	KinematicVelocityBased
)

func (b RigidBody) IsSensor() bool {
	return b == Sensor
}

func (b RigidBody) String() string {
	switch b {
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	case Sensor:
		return "sensor"
	case KinematicPositionBased:
		return "kinematic_position"
	case KinematicVelocityBased:
		return "kinematic_velocity"
	default:
		return fmt.Sprintf("rigidbody(%d)", uint8(b))
	}
}

// ParseRigidBody maps the names produced by String back to a RigidBody.
func ParseRigidBody(s string) (RigidBody, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dynamic":
		return Dynamic, nil
	case "static":
		return Static, nil
	case "sensor":
		return Sensor, nil
	case "kinematic_position", "kinematic_position_based":
		return KinematicPositionBased, nil
	case "kinematic_velocity", "kinematic_velocity_based":
		return KinematicVelocityBased, nil
	default:
		return 0, fmt.Errorf("unknown rigid body %q", s)
	}
}

// RigidBodyHandle points at the backend body created for an entity. It is
// written by the physics plugin only.
type RigidBodyHandle struct {
	Handle backend.BodyHandle
}

// ColliderHandle points at the backend collider created for an entity. It is
// written by the physics plugin only.
type ColliderHandle struct {
	Handle backend.ColliderHandle
}

var (
	RigidBodyComponent       = NewComponent[RigidBody]()
	RigidBodyHandleComponent = NewComponent[RigidBodyHandle]()
	ColliderHandleComponent  = NewComponent[ColliderHandle]()
)
