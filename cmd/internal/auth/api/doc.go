// Package authapi exposes Helix's authentication HTTP surface.
//
// It wires the /users/* endpoints to the authentication service, carries the
// token pair as http-only cookies (with body/header fallbacks for non-cookie
// clients), and provides the request-time verification gate that protected
// handlers run behind.
package authapi
