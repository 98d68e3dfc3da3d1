// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// local provider can re-hash after the next successful sign-in.
//
// # What this package must NOT do
//
//   - Store passwords or hashes.
//   - Log plaintext passwords.
package password
