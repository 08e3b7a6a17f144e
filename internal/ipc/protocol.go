package ipc

// request is one line of the control socket's line-delimited JSON input
// (spec.md §6). Fields beyond Action are only populated for the supplemented
// learn_correction action (SPEC_FULL.md §6).
type request struct {
	Action string `json:"action"`

	Trigger     string `json:"trigger,omitempty"`
	Replacement string `json:"replacement,omitempty"`
	Mode        string `json:"mode,omitempty"`
	MatchKind   string `json:"match_kind,omitempty"`
	CasePolicy  string `json:"case_policy,omitempty"`
}

// response is the control socket's reply shape. Exactly one of the
// success/error branches is populated per spec.md §6's three response forms,
// plus the learn_correction supplement's `id` field.
type response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	State   string `json:"state,omitempty"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(message string) response    { return response{Status: "success", Message: message} }
func okState(state string) response { return response{Status: "success", State: state} }
func okID(id string) response       { return response{Status: "success", ID: id} }
func fail(err error) response       { return response{Status: "error", Error: err.Error()} }
func failMsg(msg string) response   { return response{Status: "error", Error: msg} }
