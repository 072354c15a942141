package api

import "strings"

// DefaultBaseURL is the backend location used when no configuration overrides it.
const DefaultBaseURL = "http://localhost:3000/api"

// Logical backend paths, relative to the base URL.
const (
	PingPath               = "/ping"
	StatsRobotsPath        = "/stats/robots"
	StatsOnlineRobotsPath  = "/stats/online_robots"
	ActionSetRobotNamePath = "/action/set_robot_name"
)

// StatsRobotPath returns the detail path for one robot.
func StatsRobotPath(robotUUID string) string {
	return "/stats/robot/" + robotUUID
}

// StatsRobotNetworkPath returns the network snapshot path for one robot.
func StatsRobotNetworkPath(robotUUID string) string {
	return StatsRobotPath(robotUUID) + "/network"
}

// Endpoints maps logical paths onto absolute backend URLs.
type Endpoints struct {
	baseURL string
}

// NewEndpoints returns a resolver for baseURL. A trailing slash is dropped so
// that Resolve stays a plain concatenation.
func NewEndpoints(baseURL string) Endpoints {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Endpoints{baseURL: strings.TrimRight(baseURL, "/")}
}

// BaseURL returns the configured base URL.
func (e Endpoints) BaseURL() string {
	return e.baseURL
}

// Resolve returns the absolute URL for path.
func (e Endpoints) Resolve(path string) string {
	return e.baseURL + path
}
