package models

// Button is a transport-independent inline keyboard button. Token rides in
// the button's callback payload and comes back verbatim in an EventCallback;
// URL buttons open a link instead.
type Button struct {
	Text  string
	Token string
	URL   string
}
