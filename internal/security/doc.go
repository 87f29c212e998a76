// Package security derives a read-only summary of the engine's security
// posture from its configuration.
//
// # What this package must NOT do
//
//   - Read Redis or any other runtime state. The report describes
//     configuration only.
package security
