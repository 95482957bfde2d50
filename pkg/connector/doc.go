// Package connector groups the connector framework packages.
//
// Subpackages:
//
//   - core: the contracts between the framework and provider adapters
//     (Connector interface, Credentials, health and request log types)
//   - base: the resilient wrapper owning lifecycle state, rate limiting,
//     retry with backoff, health history, and lifecycle events
//   - registry: provider adapter registration and instantiation
//   - providers: concrete adapters
//
// Adapters stay small: they implement Connect, Disconnect, and
// HealthCheck against their provider's transport. All cross-cutting
// behavior belongs to base.ResilientConnector so every provider inherits
// identical retry, rate limit, and state semantics.
package connector
