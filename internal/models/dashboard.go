package models

// DashboardCounts are the cacheable numbers on the dashboard.
type DashboardCounts struct {
	Teachers          int  `json:"teachers"`
	TeachersAvailable bool `json:"teachers_available"`
	Students          int  `json:"students"`
	AttendanceRate    int  `json:"attendance_rate"`
	PendingRequests   int  `json:"pending_requests"`
}

// DashboardSummary is the at-a-glance view for the signed-in principal.
type DashboardSummary struct {
	SchoolName  string `json:"school_name"`
	DisplayName string `json:"display_name"`
	Greeting    string `json:"greeting"`
	DashboardCounts
}
