package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Run lookup/state.
	ErrRunNotFound = "E_RUN_NOT_FOUND"
	ErrRunBusy     = "E_RUN_BUSY"

	// Request layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInternal      = "E_INTERNAL"
	ErrIndexDisabled = "E_INDEX_DISABLED"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRunNotFound:     {},
	ErrRunBusy:         {},
	ErrBadRequest:      {},
	ErrInternal:        {},
	ErrIndexDisabled:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
