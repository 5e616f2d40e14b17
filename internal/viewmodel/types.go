// Package viewmodel provides the UI-facing snapshot shared by the controller
// and its hosts.
package viewmodel

// Signal is what a host renders for the current workflow state.
type Signal struct {
	Header        string `json:"header"`
	Footer        string `json:"footer"`
	ToggleChecked bool   `json:"toggle_checked"` // credential slot enabled
	ToggleEnabled bool   `json:"toggle_enabled"` // a credential is enrolled
}

// Equal reports whether two signals render identically.
func (s Signal) Equal(o Signal) bool {
	return s == o
}
