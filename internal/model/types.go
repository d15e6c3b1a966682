package model

// Core domain types for jobs, drivers and weekly plans.

// Job types. Unknown values are accepted and treated as standalone stops.
const (
	JobTypeCollection = "collection"
	JobTypeDelivery   = "delivery"
)

// Job is a single collection or delivery task at an address.
type Job struct {
	ID             string   `json:"id"`
	Location       string   `json:"location"`
	Type           string   `json:"type"` // collection or delivery
	RelatedJobID   string   `json:"related_job_id,omitempty"`
	PreferredDates []string `json:"preferred_date,omitempty"`
}

// JobUpdate carries optional field updates for an existing job.
type JobUpdate struct {
	Location       *string   `json:"location,omitempty"`
	Type           *string   `json:"type,omitempty"`
	RelatedJobID   *string   `json:"related_job_id,omitempty"`
	PreferredDates *[]string `json:"preferred_date,omitempty"`
}

type Driver struct {
	ID             string `json:"id"`
	AvailableHours int    `json:"available_hours"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

type DriverUpdate struct {
	AvailableHours *int    `json:"available_hours,omitempty"`
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

// DefaultAvailableHours applies when a driver omits available_hours.
const DefaultAvailableHours = 9

type OptimizeRequest struct {
	Jobs             []Job    `json:"jobs"`
	Drivers          []Driver `json:"drivers"`
	NumDriversPerDay int      `json:"num_drivers_per_day"`
	PlanID           string   `json:"plan_id,omitempty"`
}

// JobStop is one visit on a route. Window is [startMinute, endMinute]
// relative to the vehicle day start.
type JobStop struct {
	JobID  string `json:"job_id"`
	Window [2]int `json:"window"`
}

type Route struct {
	DriverID  string    `json:"driver_id"`
	Day       int       `json:"day"` // 1..5
	Stops     []JobStop `json:"stops"`
	TotalTime int       `json:"total_time"` // minutes
}

type OptimizeResponse struct {
	Routes     []Route  `json:"routes"`
	Unassigned []string `json:"unassigned"`
}

// Plan is a persisted optimization result.
type Plan struct {
	ID         string   `json:"id"`
	CreatedAt  string   `json:"createdAt"`
	Routes     []Route  `json:"routes"`
	Unassigned []string `json:"unassigned"`
}

// Webhook subscription models.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
