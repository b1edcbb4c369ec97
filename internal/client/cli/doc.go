// Package cli implements the interactive signer: a small REPL that loads a
// wallet key, publishes documents and submits approvals to the attestation
// service. Personhood proofs are produced by the World ID app and pasted in.
package cli
