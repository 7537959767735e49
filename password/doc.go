// Package password implements argon2id hashing and credential verification.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// caller can upgrade them after the next successful sign-in.
//
// # Verifier
//
// [Verifier.Check] collapses every failure (unknown identity, wrong
// password, corrupt stored hash) into [ErrMismatch] and spends the same
// argon2 work on each, so responses do not reveal which one happened.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other rolegate package.
//   - Log plaintext passwords or hash parameters.
package password
