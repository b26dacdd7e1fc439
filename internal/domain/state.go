package domain

// State is the persisted dialogue state of a Conversation.
type State string

const (
	StateIdle State = "idle"

	StateRequestCreation State = "request_creation"
	StateTaskCreation    State = "task_creation"

	StateGuestIdentificationName        State = "guest_identification_name"
	StateGuestIdentificationLastname    State = "guest_identification_lastname"
	StateGuestIdentificationNationality State = "guest_identification_nationality"
	StateGuestIdentificationBirthdate   State = "guest_identification_birthdate"

	StateGuestPincodeIdentificationName        State = "guest_pincode_identification_name"
	StateGuestPincodeIdentificationLastname    State = "guest_pincode_identification_lastname"
	StateGuestPincodeIdentificationNationality State = "guest_pincode_identification_nationality"
	StateGuestPincodeIdentificationBirthdate   State = "guest_pincode_identification_birthdate"
)

// StateKind groups states by the ladder that owns them.
type StateKind int

const (
	KindUnknown StateKind = iota
	KindIdle
	KindCreation
	KindIdentification
)

// IdentificationStep is one rung of the guest identification ladder.
type IdentificationStep string

const (
	StepName        IdentificationStep = "name"
	StepLastname    IdentificationStep = "lastname"
	StepNationality IdentificationStep = "nationality"
	StepBirthdate   IdentificationStep = "birthdate"
)

// RequestType selects what an identified guest receives.
type RequestType string

const (
	RequestTypeCode    RequestType = "code"
	RequestTypePincode RequestType = "pincode"
)

// CreationStep is one rung of the request/task creation ladder.
type CreationStep string

const (
	StepWaitingForResponsible CreationStep = "waiting_for_responsible"
	StepWaitingForDescription CreationStep = "waiting_for_description"
)

// ArtifactKind distinguishes staff requests from tasks.
type ArtifactKind string

const (
	ArtifactRequest ArtifactKind = "request"
	ArtifactTask    ArtifactKind = "task"
)

type identificationKey struct {
	requestType RequestType
	step        IdentificationStep
}

var identificationStates = map[identificationKey]State{
	{RequestTypeCode, StepName}:           StateGuestIdentificationName,
	{RequestTypeCode, StepLastname}:       StateGuestIdentificationLastname,
	{RequestTypeCode, StepNationality}:    StateGuestIdentificationNationality,
	{RequestTypeCode, StepBirthdate}:      StateGuestIdentificationBirthdate,
	{RequestTypePincode, StepName}:        StateGuestPincodeIdentificationName,
	{RequestTypePincode, StepLastname}:    StateGuestPincodeIdentificationLastname,
	{RequestTypePincode, StepNationality}: StateGuestPincodeIdentificationNationality,
	{RequestTypePincode, StepBirthdate}:   StateGuestPincodeIdentificationBirthdate,
}

var identificationByState = func() map[State]identificationKey {
	out := make(map[State]identificationKey, len(identificationStates))
	for k, s := range identificationStates {
		out[s] = k
	}
	return out
}()

// IdentificationState returns the state for a ladder position. The second
// return value is false for combinations outside the ladder.
func IdentificationState(rt RequestType, step IdentificationStep) (State, bool) {
	s, ok := identificationStates[identificationKey{rt, step}]
	return s, ok
}

// CreationState returns the ladder state that creates the given artifact kind.
func CreationState(kind ArtifactKind) State {
	if kind == ArtifactTask {
		return StateTaskCreation
	}
	return StateRequestCreation
}

// Kind classifies s. Unrecognized values report KindUnknown.
func (s State) Kind() StateKind {
	switch s {
	case StateIdle:
		return KindIdle
	case StateRequestCreation, StateTaskCreation:
		return KindCreation
	}
	if _, ok := identificationByState[s]; ok {
		return KindIdentification
	}
	return KindUnknown
}

// Identification returns the request type and step encoded in an
// identification state.
func (s State) Identification() (RequestType, IdentificationStep, bool) {
	k, ok := identificationByState[s]
	return k.requestType, k.step, ok
}

// ArtifactKind returns the artifact a creation state produces.
func (s State) ArtifactKind() (ArtifactKind, bool) {
	switch s {
	case StateRequestCreation:
		return ArtifactRequest, true
	case StateTaskCreation:
		return ArtifactTask, true
	}
	return "", false
}
