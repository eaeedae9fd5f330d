package model

// Partition is one row of the partition info query. The trailing "*"
// marking the default partition is stripped from Name.
type Partition struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	TotalNodes int    `json:"total_nodes"`
	AvailNodes int    `json:"avail_nodes"`
	TotalCPUs  int    `json:"total_cpus"`
	AvailCPUs  int    `json:"avail_cpus"`
}
