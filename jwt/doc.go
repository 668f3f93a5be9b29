// Package jwt issues and decodes the HS256 access and refresh tokens shared by every
// service in a deployment. Decoding is pure: it checks the signature, the pinned
// algorithm, the expiry and the presence of the identity claims, and never touches
// the revocation ledger.
package jwt
