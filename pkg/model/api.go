package model

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the subset of the POST /login response the client uses.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ID          string `json:"id"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
	Role     Role   `json:"role" validate:"required,oneof=student parent teacher"`
}

// ErrorBody is the error payload returned by the backend on non-2xx responses.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Dashboard is the GET /dashboard/{userId} payload. The backend fills a
// different subset of fields per role; absent lists decode as nil.
type Dashboard struct {
	StudyTime        Optional[float64] `json:"study_time"` // minutes
	FocusScore       Optional[float64] `json:"focus_score"`
	LearningProgress []float64         `json:"learning_progress"`
	ChildPerformance string            `json:"child_performance"`
	WeeklyOverview   string            `json:"weekly_overview"`
	Alerts           []string          `json:"alerts"`
	ClassOverview    string            `json:"class_overview"`
	AtRiskStudents   []string          `json:"at_risk_students"`
}

// Cognitive is the GET /cognitive/{userId} payload.
type Cognitive struct {
	LearningType    string            `json:"learning_type"`
	FocusScore      Optional[float64] `json:"focus_score"`
	CuriosityIndex  Optional[float64] `json:"curiosity_index"`
	AtRisk          Optional[bool]    `json:"at_risk"`
	Recommendations []string          `json:"recommendations"`
}

// Report is the payload of both GET /weekly-report/{userId} and
// GET /monthly-report/{userId}.
type Report struct {
	ImprovementPercentage Optional[float64] `json:"improvement_percentage"`
	AccuracyTrend         []float64         `json:"accuracy_trend"`
	EngagementScore       Optional[float64] `json:"engagement_score"`
	MistakeReduction      Optional[bool]    `json:"mistake_reduction"`
}

// ReportPeriod selects the weekly or monthly report endpoint.
type ReportPeriod string

const (
	PeriodWeekly  ReportPeriod = "weekly"
	PeriodMonthly ReportPeriod = "monthly"
)

// BehaviorLog is the body of POST /behavior-log.
type BehaviorLog struct {
	UserID        string  `json:"user_id" validate:"required"`
	Action        string  `json:"action" validate:"required"`
	ResponseTime  float64 `json:"response_time" validate:"gte=0"`  // seconds
	RetryCount    int     `json:"retry_count" validate:"gte=0"`
	Mistakes      int     `json:"mistakes" validate:"gte=0"`
	LessonID      string  `json:"lesson_id" validate:"required"`
	FocusScore    float64 `json:"focus_score"`
	StudyDuration float64 `json:"study_duration" validate:"gte=0"` // seconds
}
