// Package password hashes and verifies user passwords.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) so accounts
// migrated from the previous service keep working; [Hasher.NeedsUpgrade]
// reports them for re-hashing after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other portfolioAuth package.
//   - Log plaintext passwords.
package password
