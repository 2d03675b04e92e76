/*
Package resilience provides the circuit breakers guarding outbound
transport calls.

# Overview

A Breaker stops sending requests to an authority that keeps failing at the
connection level, returning ErrCircuitOpen instead of waiting on another
doomed dial. A Group keeps one breaker per authority so one dead host does
not block navigation elsewhere.

# Usage

	group := resilience.NewGroup("http", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	resp, err := resilience.Do(group.Get(u.Host), func() (*resty.Response, error) {
		return req.Execute(method, u.String())
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
