package api

// NodeStatus is the basic status of a single engine node.
type NodeStatus struct {
	ConfigurationStatus string `json:"configuration_status" yaml:"configuration_status"`
	DynUp               string `json:"dyn_up" yaml:"dyn_up"`
	InstalledPolicy     string `json:"installed_policy" yaml:"installed_policy"`
	Name                string `json:"name" yaml:"name"`
	Platform            string `json:"platform" yaml:"platform"`
	State               string `json:"state" yaml:"state"`
	Status              string `json:"status" yaml:"status"`
	Version             string `json:"version" yaml:"version"`
}
