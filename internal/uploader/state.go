package uploader

// State is a step of the upload state machine. States only move forward;
// any state may jump to StateFailed.
type State int

const (
	StateValidating State = iota
	StateAuthenticating
	StateVerifyingFolder
	StateResolvingSubfolder
	StateResolvingName
	StateUploading
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateValidating:         "Validating",
	StateAuthenticating:     "Authenticating",
	StateVerifyingFolder:    "VerifyingFolder",
	StateResolvingSubfolder: "ResolvingSubfolder",
	StateResolvingName:      "ResolvingName",
	StateUploading:          "Uploading",
	StateDone:               "Done",
	StateFailed:             "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}
