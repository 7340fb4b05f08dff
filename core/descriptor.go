package core

// Role is the explicit function an agent was registered with.
type Role string

const (
	RoleFacilitator Role = "facilitator"
	RoleSpecialist  Role = "specialist"
	RoleReviewer    Role = "reviewer"
	RoleAdvisor     Role = "advisor"
	RoleObserver    Role = "observer"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFacilitator, RoleSpecialist, RoleReviewer, RoleAdvisor, RoleObserver:
		return true
	}
	return false
}

// AgentDescriptor is the closed set of agent shapes known to the core. It is
// normalized once at registration. Concrete descriptors implement the
// unexported isDescriptor marker.
type AgentDescriptor interface {
	AgentID() string
	isDescriptor()
}

// RegisteredAgent carries everything the participation pipeline needs.
type RegisteredAgent struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Role    Role                 `json:"role"`
	Profile AgentBehaviorProfile `json:"profile"`
	// Order is the registration sequence number used for deterministic
	// tie-breaking. Assigned by the orchestrator.
	Order int `json:"order"`
}

// AgentID implements AgentDescriptor.
func (a RegisteredAgent) AgentID() string { return a.ID }

func (RegisteredAgent) isDescriptor() {}

// UnregisteredAgent is an agent seen in a conversation without a registered
// role or profile. It is excluded from evaluation.
type UnregisteredAgent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AgentID implements AgentDescriptor.
func (a UnregisteredAgent) AgentID() string { return a.ID }

func (UnregisteredAgent) isDescriptor() {}
