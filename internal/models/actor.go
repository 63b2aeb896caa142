package models

type Role string

const (
	RoleNurse  Role = "nurse"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// SystemActor is used by background workers and message consumers.
var SystemActor = Actor{ID: "system", Role: RoleSystem}
