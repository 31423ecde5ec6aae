package api

type Language string

const (
	LanguageThai    Language = "th"
	LanguageEnglish Language = "en"
)

type CheckInRequest struct {
	PatientID       string   `json:"patient_id"`
	ChiefComplaint  string   `json:"chief_complaint"`
	AppointmentTime string   `json:"appointment_time,omitempty"`
	Language        Language `json:"language"`
}

type ComplexityScore struct {
	Complexity               string  `json:"complexity"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	Reasoning                string  `json:"reasoning"`
	PriorityScore            float64 `json:"priority_score"`
}

type CheckInResponse struct {
	Success              bool             `json:"success"`
	PatientID            string           `json:"patient_id"`
	QueueNumber          int              `json:"queue_number"`
	CurrentStation       string           `json:"current_station"`
	PositionInQueue      float64          `json:"position_in_queue"`
	EstimatedWaitMinutes float64          `json:"estimated_wait_minutes"`
	ComplexityScore      *ComplexityScore `json:"complexity_score,omitempty"`
	Message              string           `json:"message"`
	Timestamp            string           `json:"timestamp"`
}

// QueueStatusResponse carries position and wait as JSON numbers; the backend
// may send fractional minutes.
type QueueStatusResponse struct {
	PatientID            string  `json:"patient_id"`
	QueueNumber          int     `json:"queue_number"`
	CurrentStation       string  `json:"current_station"`
	PositionInQueue      float64 `json:"position_in_queue"`
	EstimatedWaitMinutes float64 `json:"estimated_wait_minutes"`
	Status               string  `json:"status"`
	LastUpdated          string  `json:"last_updated"`
}

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepWaiting    StepStatus = "waiting"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
)

// JourneyStep is one station visit. Optional fields are nil when the backend omits them.
type JourneyStep struct {
	Station         string     `json:"station"`
	Status          StepStatus `json:"status"`
	Position        *float64   `json:"position,omitempty"`
	EstimatedWait   *float64   `json:"estimated_wait,omitempty"`
	EntryTime       *string    `json:"entry_time,omitempty"`
	ExitTime        *string    `json:"exit_time,omitempty"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty"`
}

type JourneyResponse struct {
	PatientID                 string        `json:"patient_id"`
	QueueNumber               int           `json:"queue_number"`
	CheckInTime               string        `json:"check_in_time"`
	CurrentStation            string        `json:"current_station"`
	OverallProgressPercent    float64       `json:"overall_progress_percent"`
	Journey                   []JourneyStep `json:"journey"`
	TotalElapsedMinutes       float64       `json:"total_elapsed_minutes"`
	EstimatedRemainingMinutes float64       `json:"estimated_remaining_minutes"`
}

type StationStatus string

const (
	StationOptimal  StationStatus = "optimal"
	StationNormal   StationStatus = "normal"
	StationWarning  StationStatus = "warning"
	StationCritical StationStatus = "critical"
)

type StationMetrics struct {
	Station            string        `json:"station"`
	QueueLength        int           `json:"queue_length"`
	AverageWaitMinutes float64       `json:"average_wait_minutes"`
	ThroughputPerHour  float64       `json:"throughput_per_hour"`
	Status             StationStatus `json:"status"`
	ActiveStaff        int           `json:"active_staff"`
	LastUpdated        string        `json:"last_updated,omitempty"`
}

type Recommendation struct {
	Action          string `json:"action"`
	Priority        int    `json:"priority"`
	EstimatedImpact string `json:"estimated_impact"`
}

type Alert struct {
	AlertID         string           `json:"alert_id"`
	Station         string           `json:"station"`
	Severity        string           `json:"severity"`
	Message         string           `json:"message"`
	DetectedAt      string           `json:"detected_at"`
	Recommendations []Recommendation `json:"recommendations"`
}

type RealtimeResponse struct {
	Stations                  []StationMetrics `json:"stations"`
	TotalPatientsInSystem     int              `json:"total_patients_in_system"`
	AverageJourneyTimeMinutes float64          `json:"average_journey_time_minutes"`
	Bottlenecks               []string         `json:"bottlenecks"`
	LastRefresh               string           `json:"last_refresh"`
}

type AlertsResponse struct {
	Alerts     []Alert `json:"alerts"`
	TotalCount int     `json:"total_count"`
}

type DailyReport struct {
	ReportDate                string                    `json:"report_date"`
	TotalPatients             int                       `json:"total_patients"`
	AverageWaitTimeMinutes    float64                   `json:"average_wait_time_minutes"`
	AverageJourneyTimeMinutes float64                   `json:"average_journey_time_minutes"`
	PatientSatisfactionScore  *float64                  `json:"patient_satisfaction_score,omitempty"`
	StationPerformance        map[string]map[string]any `json:"station_performance"`
	PeakHours                 []int                     `json:"peak_hours"`
	BottleneckSummary         map[string]int            `json:"bottleneck_summary"`
}

type MetricsSummary struct {
	Status                 string  `json:"status"`
	TotalPatientsInQueue   int     `json:"total_patients_in_queue"`
	AverageWaitTimeMinutes float64 `json:"average_wait_time_minutes"`
	ActiveBottlenecks      int     `json:"active_bottlenecks"`
	PatientSatisfaction    float64 `json:"patient_satisfaction"`
	ThroughputToday        int     `json:"throughput_today"`
	SystemHealth           string  `json:"system_health"`
}

// SimulationResult is the loosely-typed reply of the simulate/resolve endpoints.
type SimulationResult map[string]any

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SupervisorContext is the hospital snapshot sent along with a supervisor question.
type SupervisorContext struct {
	Timestamp   string              `json:"timestamp"`
	Stations    []SupervisorStation `json:"stations"`
	Alerts      []SupervisorAlert   `json:"alerts"`
	Bottlenecks []string            `json:"bottlenecks"`
	Summary     SupervisorSummary   `json:"summary"`
}

type SupervisorStation struct {
	Name        string        `json:"name"`
	QueueLength int           `json:"queue_length"`
	AverageWait float64       `json:"average_wait"`
	Status      StationStatus `json:"status"`
	Throughput  float64       `json:"throughput"`
}

type SupervisorAlert struct {
	Station  string `json:"station"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type SupervisorSummary struct {
	TotalPatients    int `json:"total_patients"`
	CriticalStations int `json:"critical_stations"`
	AverageWait      int `json:"average_wait"`
}

type SupervisorRequest struct {
	Message string            `json:"message"`
	Context SupervisorContext `json:"context"`
}

type SupervisorResponse struct {
	Response string           `json:"response"`
	Actions  []map[string]any `json:"actions,omitempty"`
}
