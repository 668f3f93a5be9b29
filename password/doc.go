// Package password verifies stored user credentials.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored bcrypt hashes ($2a$, $2b$, $2y$) and Werkzeug pbkdf2/scrypt hashes from
// older deployments still verify;
// [Hasher.NeedsRehash] reports them so callers can re-hash after a successful
// login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Log plaintext passwords or hash parameters at runtime.
package password
