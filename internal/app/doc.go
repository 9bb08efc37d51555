// Package app contains the session and transaction orchestration core that is
// independent of transport protocols.
//
// Responsibilities:
// - Own the single authenticated session: linked identities, smart account,
//   cached balance.
// - Define service ports/interfaces between the orchestrator and the external
//   identity provider and smart-account service.
// - Drive the transfer pipeline build -> sign -> submit with strict ordering
//   and abort-on-first-failure semantics.
//
// Non-responsibilities:
// - JSON-RPC/HTTP protocol handling and endpoint-level mapping.
// - Cryptographic signing and relayed execution (delegated to providers).
package app
