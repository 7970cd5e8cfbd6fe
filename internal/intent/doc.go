// Package intent contains the execution pipeline that turns a (session,
// intent text) pair into a confirmed on-chain transaction. The router
// contract owns intent semantics; this package previews the intent, resolves
// ERC-20 allowances, submits the command transaction, waits for confirmation
// and renders the final report.
package intent
