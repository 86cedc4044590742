package core

// LinkIdentifier is an opaque, comparable token identifying an access
// point on the air interface (analogous to a BSSID). It is assigned by
// the radio stack at scenario setup and immutable afterwards.
type LinkIdentifier string

// UnassociatedLink is the sentinel reported while the client has no
// serving access point.
const UnassociatedLink LinkIdentifier = ""

// CandidateAccessPoint describes one access point the client may roam
// to. The set of candidates is fixed for the session; positions are
// resolved through the knowledge base via NodeID on every tick.
type CandidateAccessPoint struct {
	LinkID     LinkIdentifier
	NodeID     string
	TxPowerDbm float64
}
