package social

const (
	Codespace string = "social"

	CodeOk                 uint32 = 0
	CodeUnknownRequestType uint32 = iota + 1000
	CodeInvalidSignature
	CodeInvalidPayload
	CodeNotRegistered
	CodeAlreadyRegistered
	CodeNotFound
	CodeAlreadyLiked
	CodeNotLiked
	CodeAlreadyFollowing
	CodeNotFollowing
	CodeSelfFollow
	CodeUnauthorized
	CodeUnknownError
)

var codeNames = map[uint32]string{
	CodeOk:                 "ok",
	CodeUnknownRequestType: "unknown request type",
	CodeInvalidSignature:   "invalid signature",
	CodeInvalidPayload:     "invalid payload",
	CodeNotRegistered:      "not registered",
	CodeAlreadyRegistered:  "already registered",
	CodeNotFound:           "not found",
	CodeAlreadyLiked:       "already liked",
	CodeNotLiked:           "not liked",
	CodeAlreadyFollowing:   "already following",
	CodeNotFollowing:       "not following",
	CodeSelfFollow:         "self follow",
	CodeUnauthorized:       "unauthorized",
	CodeUnknownError:       "unknown error",
}

// CodeName returns a human readable name for a result code in the social codespace.
func CodeName(code uint32) string {
	if name, ok := codeNames[code]; ok {
		return name
	}

	return "unrecognised code"
}
