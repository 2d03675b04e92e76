// Package pipeline implements the request pipeline every navigation goes
// through.
//
// A Registry holds Transformers. Each transformer declares Bindings: open
// handlers per URL scheme, request and response transformers (per scheme
// or for AnyScheme), and error handlers keyed by error kind (a numeric
// status, KindTransport, KindRefresh or KindDefault). The registry resolves
// them lazily into Tables ordered by (Order, registration sequence) and
// rebuilds on change.
//
// An Opener runs a Request through those tables:
//
//	request transformers ("any", then scheme)
//	open handler (first to answer)
//	response transformers ("any", then scheme)
//
// Transport failures and protocol errors are routed through the error
// chain with DispatchError. Error handlers for http and https share one
// table, so policies bind their error handlers for "http" only.
package pipeline
