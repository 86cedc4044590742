package model

// ParticipantRole distinguishes the three kinds of routing participants
// involved in a handover: the mobile client, the fixed traffic server,
// and access points on the backbone. Route updates are dispatched by
// role rather than by comparing a participant against "the serving AP".
type ParticipantRole string

const (
	RoleClient          ParticipantRole = "client"
	RoleServer          ParticipantRole = "server"
	RolePeerAccessPoint ParticipantRole = "peer-ap"
)

// Participant is a routing-table owner registered with the session.
// OutInterfaceID names the interface new routes on this participant
// egress through; it must resolve at session setup.
type Participant struct {
	ID             string
	Role           ParticipantRole
	OutInterfaceID string
}
