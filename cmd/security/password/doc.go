// Package password implements Argon2id password hashing for vidtube.
//
// Hashes are emitted in the PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$key) and are treated as untrusted
// input during verification: strict decoding plus anti-DoS parameter bounds
// keep attacker-supplied hash strings from driving pathological memory use.
//
// Cost parameters and the length policy are environment-tunable (VIDTUBE_*)
// with conservative defaults.
package password
