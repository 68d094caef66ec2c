// Package secret resolves the key material used to sign checkpoints.
//
// A key is given as a plain value, as an environment reference expanded
// strictly (see ExpandEnvStrict), or as a reference resolved by a Provider:
//   - secretref:env:MODMEMO_SIGNING_KEY
//   - secretref:file:/run/secrets/modmemo-key
//
// A resolved value prefixed with "base64:" is decoded, so binary keys can be
// stored as text.
package secret
