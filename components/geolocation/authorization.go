package geolocation

// AuthorizationStatus is the permission level a Manager reports for location access.
type AuthorizationStatus int

// The authorization states a Manager may report.
const (
	AuthorizationNotDetermined AuthorizationStatus = iota
	AuthorizationRestricted
	AuthorizationDenied
	AuthorizationAuthorizedAlways
	AuthorizationAuthorizedWhenInUse
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationNotDetermined:
		return "not_determined"
	case AuthorizationRestricted:
		return "restricted"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationAuthorizedAlways:
		return "authorized_always"
	case AuthorizationAuthorizedWhenInUse:
		return "authorized_when_in_use"
	default:
		return "unknown"
	}
}

// Authorized reports whether locations may be delivered under this status.
func (s AuthorizationStatus) Authorized() bool {
	return s == AuthorizationAuthorizedAlways || s == AuthorizationAuthorizedWhenInUse
}

// AuthorizationRequestType selects which permission to ask the Manager for.
type AuthorizationRequestType int

// Supported authorization requests.
const (
	AuthorizationRequestWhenInUse AuthorizationRequestType = iota
	AuthorizationRequestAlways
)

func (t AuthorizationRequestType) String() string {
	if t == AuthorizationRequestAlways {
		return "always"
	}
	return "when_in_use"
}

// requestAuthorization forwards the request to the matching Manager call.
func (t AuthorizationRequestType) requestAuthorization(m Manager) {
	switch t {
	case AuthorizationRequestAlways:
		m.RequestAlwaysAuthorization()
	default:
		m.RequestWhenInUseAuthorization()
	}
}
