package game

// ErrorKind classifies failures so the transport layer can map them to a
// status code without inspecting individual errors.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindAuthorization
	KindConflict
	KindNotFound
)

// Error is a command failure. Every failure is scoped to one command; nothing
// here is fatal to the process.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrNotFound       = &Error{KindNotFound, "not_found", "game not found"}
	ErrNotParticipant = &Error{KindAuthorization, "not_participant", "you are not in this game"}
	ErrNotYourTurn    = &Error{KindAuthorization, "not_your_turn", "it is not your turn"}
	ErrAlreadyFired   = &Error{KindValidation, "already_fired", "cell already fired at"}
	ErrOutOfBoard     = &Error{KindValidation, "out_of_board", "shot is outside the board"}
	ErrNotJoinable    = &Error{KindConflict, "not_joinable", "game is no longer available"}
	ErrGameFull       = &Error{KindConflict, "game_full", "game already has two players"}
	ErrAlreadyJoined  = &Error{KindConflict, "already_joined", "you are already in this game"}
	ErrNotInSetup     = &Error{KindConflict, "not_in_setup", "ships cannot be placed at this stage"}
	ErrNotActive      = &Error{KindConflict, "not_active", "game is not active"}
	ErrNotPaused      = &Error{KindConflict, "not_paused", "game is not paused"}
	ErrTerminal       = &Error{KindConflict, "finished", "game is already finished"}

	ErrWrongFleet  = &Error{KindValidation, "wrong_fleet", "layout must contain exactly one ship of each kind"}
	ErrOutOfBounds = &Error{KindValidation, "out_of_bounds", "ship cell is outside the board"}
	ErrOverlap     = &Error{KindValidation, "overlap", "two ships share a cell"}
)
