package event

// OrderCreatedPayload captures the payload for order.created events.
type OrderCreatedPayload struct {
	SubjectID        string `json:"subject_id"`
	CustomerID       string `json:"customer_id"`
	PolicySnapshotID string `json:"policy_snapshot_id"`
	PackageCode      string `json:"package_code"`
}

// OrderStatusChangedPayload captures the payload for order.status_changed events.
type OrderStatusChangedPayload struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
}

// ServiceCreatedPayload captures the payload for service.created events.
type ServiceCreatedPayload struct {
	OrderID         string `json:"order_id"`
	ServiceTypeCode string `json:"service_type_code"`
	Category        string `json:"category"`
	Tier            int    `json:"tier"`
	MaxAttempts     int    `json:"max_attempts"`
}

// ServiceDispatchedPayload captures the payload for service.dispatched events.
type ServiceDispatchedPayload struct {
	VendorCode        string `json:"vendor_code"`
	VendorReferenceID string `json:"vendor_reference_id"`
	AttemptCount      int    `json:"attempt_count"`
}

// ServiceCompletedPayload captures the payload for service.completed events.
type ServiceCompletedPayload struct {
	ResultStatus string `json:"result_status"`
	RecordCount  int    `json:"record_count"`
}

// ServiceFailedPayload captures the payload for service.failed events.
// CanRetry tells downstream consumers whether to expect a retry.
type ServiceFailedPayload struct {
	Error        string `json:"error"`
	AttemptCount int    `json:"attempt_count"`
	CanRetry     bool   `json:"can_retry"`
}

// ServiceRetriedPayload captures the payload for service.retried events.
type ServiceRetriedPayload struct {
	AttemptCount int `json:"attempt_count"`
}

// ServiceCanceledPayload captures the payload for service.canceled events.
type ServiceCanceledPayload struct {
	Reason string `json:"reason,omitempty"`
}

// SlaClockStartedPayload captures the payload for sla.started events.
type SlaClockStartedPayload struct {
	Kind               string  `json:"kind"`
	StartedAt          string  `json:"started_at"`
	DeadlineAt         string  `json:"deadline_at"`
	AtRiskThresholdAt  string  `json:"at_risk_threshold_at"`
	AtRiskPercent      float64 `json:"at_risk_percent"`
	TargetBusinessDays int     `json:"target_business_days"`
}

// SlaClockPausedPayload captures the payload for sla.paused events.
type SlaClockPausedPayload struct {
	Reason string `json:"reason"`
}

// SlaClockResumedPayload captures the payload for sla.resumed events.
type SlaClockResumedPayload struct {
	PausedForMillis int64 `json:"paused_for_millis"`
}
