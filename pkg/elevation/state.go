package elevation

// State is the terminal outcome of one elevation attempt. Every state except
// StateElevated means "fall through to the ordinary evaluators" — elevation
// failure is never itself a user-visible rejection.
type State string

const (
	// StateNotAdmin: the caller's static role is not global admin.
	StateNotAdmin State = "not_admin"

	// StateAdminNoSecret: a global admin who presented no secret and is not
	// electing to elevate.
	StateAdminNoSecret State = "admin_no_secret"

	// StateSecretInvalid: the presented secret matched neither configured
	// secret.
	StateSecretInvalid State = "secret_invalid"

	// StateRateExceeded: the client address spent its attempt budget for the
	// current window.
	StateRateExceeded State = "rate_exceeded"

	// StateJTIMissing: anti-replay is enabled and no single-use token was
	// presented.
	StateJTIMissing State = "jti_missing"

	// StateJTIReplayed: the single-use token was already consumed.
	StateJTIReplayed State = "jti_replayed"

	// StateElevated: elevation granted; every later check in this request
	// passes unconditionally.
	StateElevated State = "elevated"
)

// Granted reports whether the state is the single granting terminal.
func (s State) Granted() bool {
	return s == StateElevated
}

// Decision is the result of one elevation attempt.
type Decision struct {
	State    State
	Elevated bool
}
