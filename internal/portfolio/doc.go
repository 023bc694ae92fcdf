// Package portfolio is steward's view of the property-management backend.
//
// The engine treats properties, leases, payments, and the rest of the
// business schema as opaque records: Reader answers the questions the
// heartbeat detectors and outcome probes ask, Executor performs the
// side-effecting actions the agent's tools map to. The HTTP
// implementation talks to the platform API with OAuth2 client
// credentials; Fixture is an in-memory implementation seeded for tests
// and local development.
package portfolio
