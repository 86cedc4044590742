package model

import "strings"

// RouteEntry is a static route on a participant's routing table.
// Host routes toward the mobile client use a /32 destination; the
// client's route toward the infrastructure subnet is a network route.
type RouteEntry struct {
	DestinationCIDR string
	NextHopAddr     string
	OutInterfaceID  string
}

// IsHost reports whether the entry matches exactly one address.
func (r RouteEntry) IsHost() bool {
	return strings.HasSuffix(r.DestinationCIDR, "/32")
}
