package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Route maps one public path prefix to an internal service address.
type Route struct {
	Prefix string `yaml:"prefix"`
	Target string `yaml:"target"`
}

// RouteTable is the gateway's forwarding configuration.
type RouteTable struct {
	Routes []Route `yaml:"routes"`
}

// LoadRouteTable loads the gateway route table from config/gateway.yaml.
func LoadRouteTable() (*RouteTable, error) {
	return LoadRouteTableFromPath(filepath.Join("config", "gateway.yaml"))
}

// LoadRouteTableFromPath loads the route table from a specific path.
func LoadRouteTableFromPath(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}

	var table RouteTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse route table: %w", err)
	}

	for i, route := range table.Routes {
		if route.Prefix == "" || route.Target == "" {
			return nil, fmt.Errorf("route %d: prefix and target are required", i)
		}
	}
	return &table, nil
}

// LoadRouteTableOrDefault loads the route table or falls back to the default
// single-host layout when the file is missing.
func LoadRouteTableOrDefault() *RouteTable {
	table, err := LoadRouteTable()
	if err != nil {
		return DefaultRouteTable()
	}
	return table
}

// DefaultRouteTable returns the compiled-in route layout used by local
// development.
func DefaultRouteTable() *RouteTable {
	return &RouteTable{
		Routes: []Route{
			{Prefix: "/api/users", Target: "http://127.0.0.1:8081"},
			{Prefix: "/api/profiles", Target: "http://127.0.0.1:8082"},
			{Prefix: "/api/jobs", Target: "http://127.0.0.1:8083"},
			{Prefix: "/api/proposals", Target: "http://127.0.0.1:8084"},
		},
	}
}
