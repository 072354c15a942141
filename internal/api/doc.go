// Package api is the typed HTTP client for the robot fleet backend.
//
// # Overview
//
// Every backend call goes through Client.Do, which resolves a logical path
// against the configured base URL, enforces a fixed timeout, and validates
// JSON bodies against compiled schemas (Shape) in both directions:
//
//	caller ──► encode + validate request ──► HTTP ──► status check ──► validate + decode response
//	             │ ValidationError            │ TransportError          │ SchemaError
//
// # Endpoints
//
//	GET  /ping                          liveness, any 2xx
//	GET  /stats/robots                  [uuid]
//	GET  /stats/online_robots           [uuid]
//	GET  /stats/robot/{uuid}            {uuid, mac, name}
//	GET  /stats/robot/{uuid}/network    {last_updated, stats: [...]}
//	POST /action/set_robot_name         {robot_uuid, new_robot_name}
//
// # Failures
//
// The three error types are distinct so that callers can render them
// differently with errors.As:
//   - *ValidationError: caller input rejected, nothing was sent
//   - *TransportError: no 2xx response (network error, timeout, status)
//   - *SchemaError: 2xx response that breaks the expected contract
//
// No call is ever retried.
package api
