package carbon

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors for carbon calculations, compared with errors.Is.
var (
	// ErrMissingField indicates a required input attribute was absent, such as
	// the electric current of a reading or the total current of an aggregate.
	ErrMissingField = constError("missing required field")

	// ErrUnknownFactor indicates an emission factor name that is not registered.
	ErrUnknownFactor = constError("unknown emission factor")
)
