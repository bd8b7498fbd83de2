// Package auth issues and checks the bearer tokens of the HTTP API.
//
// Tokens are HS256 JWTs minted with "hearth token". Each carries a role:
// a viewer may read status and history, an operator may also send
// commands, toggle devices and activate scenes. Authentication is off when
// no secret is configured.
package auth
