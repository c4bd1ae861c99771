package protocol

// Role and action vocabulary shared with the engine.
const (
	RoleCaptain   = "captain"
	RoleNavigator = "navigator"
	RoleDriller   = "driller"

	ActionTravel      = "TRAVEL"
	ActionSendProbe   = "SEND_PROBE"
	ActionDeployRobot = "DEPLOY_ROBOT"
	ActionMine        = "MINE"
	ActionNoOp        = "NO_OP"

	DepthShallow = "shallow"
	DepthDeep    = "deep"

	StageWaiting   = "waiting"
	StageBriefing  = "briefing"
	StageAction    = "action"
	StageResult    = "result"
	StageComplete  = "complete"
	StageCancelled = "cancelled"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CrewID          string `json:"crew_id"`
	Role            string `json:"role"`
	ParticipantName string `json:"participant_name,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ParticipantID   string        `json:"participant_id"`
	ResumeToken     string        `json:"resume_token"`
	CrewID          string        `json:"crew_id"`
	Role            string        `json:"role"`
	Session         SessionParams `json:"session"`
}

// SessionParams carries the non-hidden parts of the session configuration so
// clients can render timers and budgets without asking per tick. Hidden
// asteroid truths and the session seed never appear here.
type SessionParams struct {
	Pressure        string         `json:"pressure"`
	Complexity      string         `json:"complexity"`
	CaptainType     string         `json:"captain_type"`
	ScoredRounds    int            `json:"scored_rounds"`
	PUPerRound      int            `json:"pu_per_round"`
	BriefingSeconds int            `json:"briefing_seconds"`
	ActionSeconds   int            `json:"action_seconds"`
	ResultSeconds   int            `json:"result_seconds"`
	TravelCosts     map[string]int `json:"travel_costs"`
	ProbeCost       int            `json:"probe_cost"`
	RobotCost       int            `json:"robot_cost"`
	MineShallowCost int            `json:"mine_shallow_cost"`
	MineDeepCost    int            `json:"mine_deep_cost"`
}

// ACTION (client -> server): one proposed action for the current round.
type ActionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Round           int    `json:"round"`
	Kind            string `json:"kind"`
	Destination     string `json:"destination,omitempty"` // TRAVEL only
	Depth           string `json:"depth,omitempty"`       // MINE only
}

// ACTION_RESULT (server -> client): accept/reject for a submitted action.
type ActionResultMsg struct {
	Type     string `json:"type"`
	Round    int    `json:"round"`
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CHAT (both directions). An empty ToRole broadcasts to the whole crew.
type ChatMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Round           int    `json:"round,omitempty"`
	FromRole        string `json:"from_role,omitempty"`
	ToRole          string `json:"to_role,omitempty"`
	Text            string `json:"text"`
}

// STATE (server -> client): the role-filtered round view.
type StateMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	CrewID          string     `json:"crew_id"`
	Role            string     `json:"role"`
	Round           int        `json:"round"`
	Training        bool       `json:"training"`
	Stage           string     `json:"stage"`
	DeadlineUnixMs  int64      `json:"deadline_unix_ms,omitempty"`
	RemainingPU     int        `json:"remaining_pu"`
	Location        string     `json:"location"`
	Minerals        int        `json:"minerals"`
	ActionPending   bool       `json:"action_pending,omitempty"`
	Asteroids       []IntelRow `json:"asteroids"`
}

// IntelRow is one asteroid as visible to a single role. Hidden values stay
// nil until intel about them is visible per the complexity condition.
type IntelRow struct {
	Name        string `json:"name"`
	TravelCost  int    `json:"travel_cost"`
	Here        bool   `json:"here"`
	Mined       bool   `json:"mined"`
	MaxMinerals *int   `json:"max_minerals,omitempty"`
	ShallowCost *int   `json:"shallow_cost,omitempty"`
	DeepCost    *int   `json:"deep_cost,omitempty"`
}

// ROUND_RESULT (server -> client, and to persistence): emitted once per
// resolved round.
type RoundResultMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	CrewID          string           `json:"crew_id"`
	Round           int              `json:"round"`
	Training        bool             `json:"training"`
	Location        string           `json:"location"`
	RemainingPU     int              `json:"remaining_pu"`
	Actions         []ResolvedAction `json:"actions"`
	Outcome         *MiningOutcome   `json:"outcome,omitempty"`
	Minerals        int              `json:"minerals"`
	PUSpentByRole   map[string]int   `json:"pu_spent_by_role"`
	NextRound       int              `json:"next_round"`
	Complete        bool             `json:"complete"`
}

// ResolvedAction records how one role's action settled during the Result
// stage, in causal order.
type ResolvedAction struct {
	Role    string `json:"role"`
	Kind    string `json:"kind"`
	Target  string `json:"target,omitempty"`
	Depth   string `json:"depth,omitempty"`
	Cost    int    `json:"cost"`
	Applied bool   `json:"applied"`
	NoOp    bool   `json:"noop,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// MiningOutcome is the resolver's verdict for a Mine action.
type MiningOutcome struct {
	Asteroid    string  `json:"asteroid"`
	Depth       string  `json:"depth"`
	IntelCombo  string  `json:"intel_combo"`
	Probability float64 `json:"probability"`
	Success     bool    `json:"success"`
	Minerals    int     `json:"minerals"`
	CostPaid    int     `json:"cost_paid"`
}

// ERROR (server -> client): protocol-level failure before a session exists.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
