// Package project resolves dashboard projects to their hosted survey tables.
package project

// Key identifies a project's hosted table.
type Key string

type Project struct {
	Label string `json:"label"`
	Key   Key    `json:"key"`
}

// Projects is the closed, ordered set of projects offered by the dashboard.
var Projects = []Project{
	{Label: "GH2402 - Akrofufu 1", Key: "akrofufu1"},
	{Label: "GH2402 - Akrofufu 2", Key: "akrofufu2"},
	{Label: "GH2302 - Abomosu 1", Key: "abomosu1"},
	{Label: "GH2302 - Abomosu 2", Key: "abomosu2"},
	{Label: "GH2301 - Asamama", Key: "asamama"},
	{Label: "GH2203 - Asunafo", Key: "asunafo"},
	{Label: "GH2202 - Ekorso", Key: "ekorso"},
	{Label: "GH2201 - Akakom", Key: "akakom"},
	{Label: "GH2101 - Sankubenase", Key: "sankubenase"},
}

// DefaultLabel is the project selected when a session starts.
var DefaultLabel = Projects[0].Label

// Labels returns the project labels in display order.
func Labels() []string {
	labels := make([]string, 0, len(Projects))
	for _, p := range Projects {
		labels = append(labels, p.Label)
	}
	return labels
}

// Keys returns the project keys in display order.
func Keys() []string {
	keys := make([]string, 0, len(Projects))
	for _, p := range Projects {
		keys = append(keys, string(p.Key))
	}
	return keys
}

// Entry describes a project and whether a hosted table is configured for it.
type Entry struct {
	Project
	ItemID     string `json:"-"`
	Configured bool   `json:"configured"`
}
