package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusWaiting    AppointmentStatus = "WAITING"
	AppointmentStatusInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentStatusCompleted  AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled  AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow     AppointmentStatus = "NO_SHOW"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusWaiting:    {AppointmentStatusInProgress, AppointmentStatusCancelled, AppointmentStatusNoShow},
	AppointmentStatusInProgress: {AppointmentStatusCompleted, AppointmentStatusNoShow},
	AppointmentStatusCompleted:  {},
	AppointmentStatusCancelled:  {},
	AppointmentStatusNoShow:     {},
}

func (s AppointmentStatus) Valid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

func (s AppointmentStatus) IsTerminal() bool {
	return s.Valid() && len(appointmentTransitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step.
// A status never transitions to itself.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is one entry of a clinic's daily OPD queue. The queue
// partition is (ClinicID, AppointmentDate); live rows of a partition carry
// queue numbers 1..N with no gaps.
type Appointment struct {
	Base
	ClinicID        uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	AppointmentDate time.Time         `db:"appointment_date" json:"appointment_date"`
	QueueNumber     int               `db:"queue_number" json:"queue_number"`
	Status          AppointmentStatus `db:"status" json:"status"`
	ChiefComplaints string            `db:"chief_complaints" json:"chief_complaints,omitempty"`
	CreatedBy       uuid.UUID         `db:"created_by" json:"created_by"`
}

// QueueKey identifies a queue partition.
type QueueKey struct {
	ClinicID uuid.UUID
	Date     time.Time
}

func (a *Appointment) QueueKey() QueueKey {
	return QueueKey{ClinicID: a.ClinicID, Date: DateOnly(a.AppointmentDate)}
}

// DailyStats summarises one clinic day.
type DailyStats struct {
	Date      string                    `json:"date"`
	Total     int                       `json:"total_patients"`
	Completed int                       `json:"completed"`
	Pending   int                       `json:"pending"`
	ByStatus  map[AppointmentStatus]int `json:"by_status"`
	// Revenue is the sum of paid amounts of PAID invoices created that day,
	// in minor units. It is withheld from callers who may not view
	// collections.
	Revenue *int64 `json:"revenue,omitempty"`
}

type AddToQueueRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	AppointmentDate string    `json:"appointment_date" binding:"omitempty,datetime=2006-01-02"`
	ChiefComplaints string    `json:"chief_complaints" binding:"max=2000"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointment_status"`
}

// UpdatePositionRequest carries the requested 1-based position. It is
// clamped into the partition, but must fit in an int32.
type UpdatePositionRequest struct {
	NewPosition *int64 `json:"new_position" binding:"required"`
}
