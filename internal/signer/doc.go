// Package signer provides the session keyed key-store abstraction used by the
// intent pipeline. The embedding application owns key lifecycle; the pipeline
// only resolves a signer for a session and uses it to sign transactions.
package signer
