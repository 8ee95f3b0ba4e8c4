// Package driving provides interfaces for application entry points
// (primary/inbound ports) consumed by the HTTP API, CLI and MCP
// adapters.
package driving
