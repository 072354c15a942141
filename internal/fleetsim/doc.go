// Package fleetsim is an in-memory robot backend for local development and
// integration tests.
//
// It serves the same HTTP API the dashboard client consumes:
//
//	GET  /api/ping
//	GET  /api/stats/robots
//	GET  /api/stats/online_robots
//	GET  /api/stats/robot/{uuid}
//	GET  /api/stats/robot/{uuid}/network
//	POST /api/action/set_robot_name
//
// plus a few simulator controls under /api/sim for toggling robots online
// and slowing down pings.
package fleetsim
