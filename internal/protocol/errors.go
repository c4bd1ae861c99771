package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Crew routing/state.
	ErrCrewNotFound = "E_CREW_NOT_FOUND"
	ErrCrewFull     = "E_CREW_FULL"
	ErrCrewClosed   = "E_CREW_CLOSED"

	// Action/validation layer. These mirror the engine's reject taxonomy;
	// every rejection relayed to a participant carries one of them.
	ErrStageViolation  = "E_STAGE_VIOLATION"
	ErrRoleViolation   = "E_ROLE_VIOLATION"
	ErrInsufficientPU  = "E_INSUFFICIENT_PU"
	ErrInvalidTarget   = "E_INVALID_TARGET"
	ErrDuplicateAction = "E_DUPLICATE_ACTION"
	ErrRateLimit       = "E_RATE_LIMIT"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrCrewNotFound:    {},
	ErrCrewFull:        {},
	ErrCrewClosed:      {},
	ErrStageViolation:  {},
	ErrRoleViolation:   {},
	ErrInsufficientPU:  {},
	ErrInvalidTarget:   {},
	ErrDuplicateAction: {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
