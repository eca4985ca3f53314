package event

// Lifecycle events are produced by the session manager, never by the wire.
// They travel on the same stream as inbound events so components observe
// connection transitions and message traffic in one serialized order.

// Connected fires after a successful dial. Resumed is true when the dial
// followed an unexpected transport drop rather than an explicit Connect.
type Connected struct {
	Resumed bool
}

// Reconnecting fires before each backoff wait. Attempt is the running
// counter fed to the backoff schedule.
type Reconnecting struct {
	Attempt int
}

// Disconnected fires only on explicit disconnect; transport drops go
// straight to Reconnecting.
type Disconnected struct{}

// Degraded fires when an explicit Connect could not establish the duplex
// session. REST reads and writes remain available.
type Degraded struct {
	Reason string
}

func (Connected) isEvent()    {}
func (Reconnecting) isEvent() {}
func (Disconnected) isEvent() {}
func (Degraded) isEvent()     {}
