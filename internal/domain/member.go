package domain

// Role is the local participant's side of the negotiation.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// Queue names one of the two per-room candidate collections.
type Queue string

const (
	QueueFromCaller Queue = "callerCandidates"
	QueueFromCallee Queue = "calleeCandidates"
)

// Valid reports whether q is one of the two known queues.
func (q Queue) Valid() bool {
	return q == QueueFromCaller || q == QueueFromCallee
}

// Outbound is the queue this role writes its own candidates to.
func (r Role) Outbound() Queue {
	if r == RoleCaller {
		return QueueFromCaller
	}
	return QueueFromCallee
}

// Inbound is the queue this role reads the peer's candidates from.
func (r Role) Inbound() Queue {
	if r == RoleCaller {
		return QueueFromCallee
	}
	return QueueFromCaller
}
