package core

// RadioStack is the boundary to the external radio layer. ServingLink
// reports the current association; TriggerScan asks the stack to scan
// for (and possibly reassociate with) a better access point. The scan
// is fire-and-forget: its outcome is observed as a serving-link change
// on a later poll, never synchronously.
type RadioStack interface {
	ServingLink() LinkIdentifier
	TriggerScan(hint LinkIdentifier)
}

// AssociationObserver is a thin, stateless adapter over the radio
// stack. It does not memoize; transition detection is the caller's
// job, by comparing successive polls.
type AssociationObserver struct {
	stack RadioStack
}

// NewAssociationObserver wraps a radio stack.
func NewAssociationObserver(stack RadioStack) *AssociationObserver {
	return &AssociationObserver{stack: stack}
}

// Poll returns the current serving access point identifier, or
// UnassociatedLink when the client has no association.
func (o *AssociationObserver) Poll() LinkIdentifier {
	if o == nil || o.stack == nil {
		return UnassociatedLink
	}
	return o.stack.ServingLink()
}
