package model

// UsageRow is one user/account row of the historical usage report.
type UsageRow struct {
	Cluster string  `json:"cluster"`
	Account string  `json:"account"`
	User    string  `json:"user"`
	Hours   float64 `json:"hours"` // gpu-hours consumed within the report window
}
