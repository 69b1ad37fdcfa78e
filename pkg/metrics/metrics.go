package metrics

// RecordConnection records an accepted external connection and its result
func (r *Registry) RecordConnection(device, result string) {
	if r == nil {
		return
	}
	r.ConnectionsTotal.WithLabelValues(device, result).Inc()
}

// RecordDenial records a denied connection and the enforcement stage that denied it
func (r *Registry) RecordDenial(device, stage string) {
	if r == nil {
		return
	}
	r.ConnectionsTotal.WithLabelValues(device, "denied").Inc()
	r.ConnectionsDenied.WithLabelValues(device, stage).Inc()
}

// SessionOpened records a new proxied session
func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.ActiveSessions.Inc()
}

// SessionClosed records the end of a proxied session
func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.ActiveSessions.Dec()
}

// SessionKilled records an operator-initiated session termination
func (r *Registry) SessionKilled() {
	if r == nil {
		return
	}
	r.SessionsKilledTotal.Inc()
}

// RecordBytesRelayed records bytes moved through a proxied session
func (r *Registry) RecordBytesRelayed(direction string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.BytesRelayedTotal.WithLabelValues(direction).Add(float64(n))
}

// ListenerStarted records a listener entering the running state
func (r *Registry) ListenerStarted() {
	if r == nil {
		return
	}
	r.ListenersRunning.Inc()
}

// ListenerStopped records a listener leaving the running state
func (r *Registry) ListenerStopped() {
	if r == nil {
		return
	}
	r.ListenersRunning.Dec()
}

// RecordBindFailure records a listener failing to bind its external port
func (r *Registry) RecordBindFailure() {
	if r == nil {
		return
	}
	r.BindFailuresTotal.Inc()
}

// RecordReachabilityCheck records a reachability decision outcome ("allow" or "deny")
func (r *Registry) RecordReachabilityCheck(outcome string) {
	if r == nil {
		return
	}
	r.ReachabilityChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordTopologyReload records a topology configuration reload
func (r *Registry) RecordTopologyReload() {
	if r == nil {
		return
	}
	r.TopologyReloadsTotal.Inc()
}

// SetExposedServices records the current number of exposed services
func (r *Registry) SetExposedServices(n int) {
	if r == nil {
		return
	}
	r.ExposedServices.Set(float64(n))
}

// RecordSecurityEvent records an emitted security event by severity
func (r *Registry) RecordSecurityEvent(severity string) {
	if r == nil {
		return
	}
	r.SecurityEventsTotal.WithLabelValues(severity).Inc()
}
