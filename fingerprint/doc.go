// Package fingerprint derives content-addressed keys for module invocations.
//
// A Fingerprint is a SHA-256 digest over a module's identity, the
// fingerprints of its bound submodules (sorted by role name), and the
// content hashes of its input values (sorted by input name). Every part is
// length-framed so adjacent parts cannot be confused, and the result is
// identical across processes for identical configurations.
package fingerprint
