// Package checkpoint persists the contents of a memoization cache and
// restores them after a restart.
//
// A checkpoint is a stream of newline-delimited JSON records:
//
//	{"kind":"header","format":"modmemo-checkpoint","version":1,"id":"01J...","created_at":"...","graph":"..."}
//	{"kind":"entry","key":"fp:...","type":"int","tag":"durable","payload":"MjU="}
//	...
//	{"kind":"trailer","count":2,"checksum":"<sha256 hex>","signature":"<jwt>"}
//
// Entries are written sorted by key. Only durable entries are written unless
// IncludeSession is given. The trailer carries the SHA-256 of every line
// before it and, when a signing key is configured, an HS256 JWT over that
// checksum.
//
// Restore rejects other format versions with ErrVersionMismatch and damaged
// streams with ErrCorrupt before loading anything. An entry whose type tag
// the registry does not know fails on its own with ErrUnknownType; the rest
// of the entries still load and the failure is listed in the Report.
//
// Keys are the fingerprints the cache was filled under, so a freshly
// configured module graph finds restored results without recomputing.
//
// Store abstracts where checkpoints live. FileStore writes files atomically;
// the badgerstore and sqlitestore subpackages keep them in embedded
// databases. Autosaver snapshots a cache to a Store on an interval.
package checkpoint
