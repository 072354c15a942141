package api

import (
	"context"
	"time"
)

// RobotDetail is the identity record of an online robot.
type RobotDetail struct {
	UUID string `json:"uuid"`
	MAC  string `json:"mac"`
	Name string `json:"name"`
}

// NetworkSnapshot is the interface table reported by an online robot.
type NetworkSnapshot struct {
	LastUpdated time.Time          `json:"last_updated"`
	Interfaces  []NetworkInterface `json:"stats"`
}

// NetworkInterface describes one network interface on a robot.
type NetworkInterface struct {
	Index        int             `json:"index"`
	MTU          int             `json:"mtu"`
	Name         string          `json:"name"`
	HardwareAddr string          `json:"hardware_addr"`
	Flags        []string        `json:"flags"`
	Addrs        []InterfaceAddr `json:"addrs"`
}

// InterfaceAddr is one address bound to an interface, in CIDR notation.
type InterfaceAddr struct {
	Addr string `json:"addr"`
}

// SetRobotNameRequest is the body of the rename action.
type SetRobotNameRequest struct {
	RobotUUID    string `json:"robot_uuid"`
	NewRobotName string `json:"new_robot_name"`
}

// FetchRobots returns the identifiers of every registered robot.
func (c *Client) FetchRobots(ctx context.Context) ([]string, error) {
	return Get[[]string](ctx, c, StatsRobotsPath, RobotListShape)
}

// FetchOnlineRobots returns the identifiers of the currently connected robots.
func (c *Client) FetchOnlineRobots(ctx context.Context) ([]string, error) {
	return Get[[]string](ctx, c, StatsOnlineRobotsPath, RobotListShape)
}

// FetchRobot returns the identity record of one robot.
func (c *Client) FetchRobot(ctx context.Context, robotUUID string) (RobotDetail, error) {
	return Get[RobotDetail](ctx, c, StatsRobotPath(robotUUID), RobotDetailShape)
}

// FetchRobotNetwork returns the network snapshot of one robot.
func (c *Client) FetchRobotNetwork(ctx context.Context, robotUUID string) (NetworkSnapshot, error) {
	return Get[NetworkSnapshot](ctx, c, StatsRobotNetworkPath(robotUUID), RobotNetworkShape)
}

// SetRobotName posts the rename action.
func (c *Client) SetRobotName(ctx context.Context, req SetRobotNameRequest) error {
	return Post(ctx, c, ActionSetRobotNamePath, req, SetRobotNameShape)
}
