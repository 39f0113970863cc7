package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type clinicRepo struct{ tx *memTx }

func (r clinicRepo) Create(_ context.Context, clinic *model.Clinic) error {
	if _, ok := r.tx.state.clinics[clinic.ID]; ok {
		return conflict("clinic", clinic.ID)
	}
	r.tx.state.clinics[clinic.ID] = *clinic
	return nil
}

func (r clinicRepo) Get(_ context.Context, id uuid.UUID) (*model.Clinic, error) {
	c, ok := r.tx.state.clinics[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r clinicRepo) SetOwner(_ context.Context, clinicID uuid.UUID, doctorID *uuid.UUID) error {
	c, ok := r.tx.state.clinics[clinicID]
	if !ok {
		return repository.ErrNotFound
	}
	if doctorID != nil {
		id := *doctorID
		doctorID = &id
	}
	c.OwnerDoctorID = doctorID
	c.UpdatedAt = r.tx.now()
	r.tx.state.clinics[clinicID] = c
	return nil
}

func (r clinicRepo) ListCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(r.tx.state.clinics))
	for _, c := range r.tx.state.clinics {
		codes = append(codes, c.ClinicCode)
	}
	return codes, nil
}

func (r clinicRepo) AddAdmin(_ context.Context, adminID, clinicID uuid.UUID) error {
	r.tx.state.clinicAdmins[model.ClinicAdmin{AdminID: adminID, ClinicID: clinicID}] = struct{}{}
	return nil
}

func (r clinicRepo) IsAdmin(_ context.Context, adminID, clinicID uuid.UUID) (bool, error) {
	_, ok := r.tx.state.clinicAdmins[model.ClinicAdmin{AdminID: adminID, ClinicID: clinicID}]
	return ok, nil
}

func (r clinicRepo) ListByAdmin(_ context.Context, adminID uuid.UUID) ([]*model.Clinic, error) {
	var out []*model.Clinic
	for link := range r.tx.state.clinicAdmins {
		if link.AdminID != adminID {
			continue
		}
		if c, ok := r.tx.state.clinics[link.ClinicID]; ok {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClinicCode < out[j].ClinicCode })
	return out, nil
}

type userRepo struct{ tx *memTx }

func (r userRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := r.tx.state.users[user.ID]; ok {
		return conflict("user", user.ID)
	}
	r.tx.state.users[user.ID] = *user
	return nil
}

func (r userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.tx.state.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.tx.state.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) ListByClinic(_ context.Context, clinicID uuid.UUID) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.tx.state.users {
		if u.ClinicID != nil && *u.ClinicID == clinicID {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r userRepo) Update(_ context.Context, user *model.User) error {
	u, ok := r.tx.state.users[user.ID]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	u.FullName = user.FullName
	u.Phone = user.Phone
	u.IsActive = user.IsActive
	u.UpdatedAt = user.UpdatedAt
	r.tx.state.users[u.ID] = u
	return nil
}

type doctorRepo struct{ tx *memTx }

func (r doctorRepo) Create(_ context.Context, doctor *model.Doctor) error {
	if _, ok := r.tx.state.doctors[doctor.ID]; ok {
		return conflict("doctor", doctor.ID)
	}
	r.tx.state.doctors[doctor.ID] = *doctor
	return nil
}

func (r doctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	d, ok := r.tx.state.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r doctorRepo) GetByUser(_ context.Context, userID uuid.UUID) (*model.Doctor, error) {
	for _, d := range r.tx.state.doctors {
		if d.UserID == userID {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r doctorRepo) ListCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(r.tx.state.doctors))
	for _, d := range r.tx.state.doctors {
		codes = append(codes, d.DoctorCode)
	}
	return codes, nil
}

type permissionRepo struct{ tx *memTx }

func (r permissionRepo) Get(_ context.Context, userID, clinicID uuid.UUID) (*model.UserPermission, error) {
	p, ok := r.tx.state.permissions[permKey{userID, clinicID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r permissionRepo) Upsert(_ context.Context, perm *model.UserPermission) error {
	key := permKey{perm.UserID, perm.ClinicID}
	if existing, ok := r.tx.state.permissions[key]; ok {
		perm.ID = existing.ID
		perm.CreatedAt = existing.CreatedAt
	}
	r.tx.state.permissions[key] = *perm
	return nil
}

func (r permissionRepo) Delete(_ context.Context, userID, clinicID uuid.UUID) error {
	delete(r.tx.state.permissions, permKey{userID, clinicID})
	return nil
}

type patientRepo struct{ tx *memTx }

func (r patientRepo) Create(_ context.Context, patient *model.Patient) error {
	if _, ok := r.tx.state.patients[patient.ID]; ok {
		return conflict("patient", patient.ID)
	}
	r.tx.state.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Patient, error) {
	p, ok := r.tx.state.patients[id]
	if !ok || p.ClinicID != clinicID || p.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r patientRepo) List(_ context.Context, clinicID uuid.UUID, filter model.PatientFilter) ([]*model.Patient, error) {
	page := filter.Pagination.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var matched []*model.Patient
	for _, p := range r.tx.state.patients {
		if p.ClinicID != clinicID || p.DeletedAt != nil {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.FullName), search) &&
			!strings.Contains(strings.ToLower(p.PatientCode), search) &&
			!strings.Contains(p.Phone, search) {
			continue
		}
		p := p
		matched = append(matched, &p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page), nil
}

func (r patientRepo) Update(_ context.Context, patient *model.Patient) error {
	p, ok := r.tx.state.patients[patient.ID]
	if !ok || p.ClinicID != patient.ClinicID || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	p.FullName = patient.FullName
	p.Age = patient.Age
	p.Gender = patient.Gender
	p.Phone = patient.Phone
	p.Address = patient.Address
	p.BloodGroup = patient.BloodGroup
	p.UpdatedAt = patient.UpdatedAt
	r.tx.state.patients[p.ID] = p
	return nil
}

func (r patientRepo) SoftDelete(_ context.Context, clinicID, id uuid.UUID, at time.Time) error {
	p, ok := r.tx.state.patients[id]
	if !ok || p.ClinicID != clinicID || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	p.DeletedAt = &at
	p.UpdatedAt = at
	r.tx.state.patients[id] = p
	return nil
}

func (r patientRepo) ListCodes(_ context.Context, clinicID uuid.UUID) ([]string, error) {
	var codes []string
	for _, p := range r.tx.state.patients {
		if p.ClinicID == clinicID {
			codes = append(codes, p.PatientCode)
		}
	}
	return codes, nil
}

type invoiceRepo struct{ tx *memTx }

func (r invoiceRepo) Create(_ context.Context, invoice *model.Invoice) error {
	if _, ok := r.tx.state.invoices[invoice.ID]; ok {
		return conflict("invoice", invoice.ID)
	}
	r.tx.state.invoices[invoice.ID] = *invoice
	return nil
}

func (r invoiceRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Invoice, error) {
	inv, ok := r.tx.state.invoices[id]
	if !ok || inv.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (r invoiceRepo) List(_ context.Context, clinicID uuid.UUID, filter model.InvoiceFilter) ([]*model.Invoice, error) {
	var matched []*model.Invoice
	for _, inv := range r.tx.state.invoices {
		if inv.ClinicID != clinicID {
			continue
		}
		if filter.PatientID != nil && inv.PatientID != *filter.PatientID {
			continue
		}
		inv := inv
		matched = append(matched, &inv)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, filter.Pagination.Normalize()), nil
}

func (r invoiceRepo) UpdatePayment(_ context.Context, invoice *model.Invoice) error {
	inv, ok := r.tx.state.invoices[invoice.ID]
	if !ok || inv.ClinicID != invoice.ClinicID || inv.DeletedAt != nil {
		return repository.ErrNotFound
	}
	inv.PaidAmount = invoice.PaidAmount
	inv.PaymentStatus = invoice.PaymentStatus
	inv.PaymentMode = invoice.PaymentMode
	inv.UpdatedAt = invoice.UpdatedAt
	r.tx.state.invoices[inv.ID] = inv
	return nil
}

func (r invoiceRepo) ListCodes(_ context.Context, clinicID uuid.UUID) ([]string, error) {
	var codes []string
	for _, inv := range r.tx.state.invoices {
		if inv.ClinicID == clinicID {
			codes = append(codes, inv.InvoiceNumber)
		}
	}
	return codes, nil
}

func (r invoiceRepo) SumPaid(_ context.Context, clinicID uuid.UUID, day time.Time) (int64, error) {
	start, end := model.DayBounds(day, time.Local)
	var total int64
	for _, inv := range r.tx.state.invoices {
		if inv.ClinicID == clinicID &&
			inv.PaymentStatus == model.PaymentStatusPaid &&
			!inv.CreatedAt.Before(start) && inv.CreatedAt.Before(end) {
			total += inv.PaidAmount
		}
	}
	return total, nil
}

type appointmentRepo struct{ tx *memTx }

// LockPartition is a no-op: the store mutex already serializes transactions.
func (r appointmentRepo) LockPartition(context.Context, model.QueueKey) error {
	return nil
}

func (r appointmentRepo) live(key model.QueueKey) []model.Appointment {
	var rows []model.Appointment
	for _, a := range r.tx.state.appointments {
		if a.DeletedAt == nil && a.QueueKey() == key {
			rows = append(rows, a)
		}
	}
	return rows
}

func (r appointmentRepo) MaxQueueNumber(_ context.Context, key model.QueueKey) (int, error) {
	max := 0
	for _, a := range r.live(key) {
		if a.QueueNumber > max {
			max = a.QueueNumber
		}
	}
	return max, nil
}

func (r appointmentRepo) Count(_ context.Context, key model.QueueKey) (int, error) {
	return len(r.live(key)), nil
}

func (r appointmentRepo) Create(_ context.Context, appointment *model.Appointment) error {
	if _, ok := r.tx.state.appointments[appointment.ID]; ok {
		return conflict("appointment", appointment.ID)
	}
	row := *appointment
	row.AppointmentDate = model.DateOnly(row.AppointmentDate)
	r.tx.state.appointments[row.ID] = row
	return nil
}

func (r appointmentRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	a, ok := r.tx.state.appointments[id]
	if !ok || a.ClinicID != clinicID || a.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r appointmentRepo) List(_ context.Context, key model.QueueKey) ([]*model.Appointment, error) {
	rows := r.live(key)
	sort.Slice(rows, func(i, j int) bool { return rows[i].QueueNumber < rows[j].QueueNumber })
	out := make([]*model.Appointment, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (r appointmentRepo) UpdateStatus(_ context.Context, appointment *model.Appointment, from model.AppointmentStatus) error {
	a, ok := r.tx.state.appointments[appointment.ID]
	if !ok || a.ClinicID != appointment.ClinicID || a.DeletedAt != nil || a.Status != from {
		return repository.ErrConflict
	}
	a.Status = appointment.Status
	a.UpdatedAt = appointment.UpdatedAt
	r.tx.state.appointments[a.ID] = a
	return nil
}

func (r appointmentRepo) Move(_ context.Context, key model.QueueKey, move model.QueueMove) error {
	moved, ok := r.tx.state.appointments[move.AppointmentID]
	if !ok || moved.DeletedAt != nil || moved.QueueKey() != key || moved.QueueNumber != move.From {
		return repository.ErrConflict
	}
	now := r.tx.now()
	for _, a := range r.live(key) {
		next := move.Apply(a.QueueNumber)
		if a.ID == move.AppointmentID {
			next = move.To
		}
		if next != a.QueueNumber {
			a.QueueNumber = next
			a.UpdatedAt = now
			r.tx.state.appointments[a.ID] = a
		}
	}
	return nil
}

func (r appointmentRepo) SoftDelete(_ context.Context, appointment *model.Appointment, at time.Time) error {
	a, ok := r.tx.state.appointments[appointment.ID]
	if !ok || a.ClinicID != appointment.ClinicID || a.DeletedAt != nil {
		return repository.ErrNotFound
	}
	removed := a.QueueNumber
	key := a.QueueKey()
	a.DeletedAt = &at
	a.UpdatedAt = at
	a.QueueNumber = 0
	r.tx.state.appointments[a.ID] = a

	for _, other := range r.live(key) {
		if other.QueueNumber > removed {
			other.QueueNumber--
			other.UpdatedAt = at
			r.tx.state.appointments[other.ID] = other
		}
	}
	return nil
}

func (r appointmentRepo) CountByStatus(_ context.Context, key model.QueueKey) (map[model.AppointmentStatus]int, error) {
	counts := map[model.AppointmentStatus]int{}
	for _, a := range r.live(key) {
		counts[a.Status]++
	}
	return counts, nil
}

type visitRepo struct{ tx *memTx }

func (r visitRepo) Create(_ context.Context, visit *model.Visit) error {
	if _, ok := r.tx.state.visits[visit.ID]; ok {
		return conflict("visit", visit.ID)
	}
	r.tx.state.visits[visit.ID] = *visit
	return nil
}

func (r visitRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Visit, error) {
	v, ok := r.tx.state.visits[id]
	if !ok || v.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r visitRepo) ListByPatient(_ context.Context, clinicID, patientID uuid.UUID) ([]*model.Visit, error) {
	out := []*model.Visit{}
	for _, v := range r.tx.state.visits {
		if v.ClinicID == clinicID && v.PatientID == patientID && v.DeletedAt == nil {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].VisitDate.Equal(out[j].VisitDate) {
			return out[i].VisitDate.After(out[j].VisitDate)
		}
		return out[i].VisitNumber > out[j].VisitNumber
	})
	return out, nil
}

func (r visitRepo) UpdateNotes(_ context.Context, visit *model.Visit) error {
	v, ok := r.tx.state.visits[visit.ID]
	if !ok || v.ClinicID != visit.ClinicID || v.DeletedAt != nil {
		return repository.ErrNotFound
	}
	v.Symptoms = visit.Symptoms
	v.Diagnosis = visit.Diagnosis
	v.PrescriptionNotes = visit.PrescriptionNotes
	v.UpdatedAt = visit.UpdatedAt
	r.tx.state.visits[v.ID] = v
	return nil
}

func (r visitRepo) MaxVisitNumber(_ context.Context, patientID uuid.UUID) (int, error) {
	max := 0
	for _, v := range r.tx.state.visits {
		if v.PatientID == patientID && v.VisitNumber > max {
			max = v.VisitNumber
		}
	}
	return max, nil
}

func (r visitRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*model.Visit, error) {
	for _, v := range r.tx.state.visits {
		if v.AppointmentID != nil && *v.AppointmentID == appointmentID {
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

type outboxRepo struct{ tx *memTx }

func (r outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.tx.state.outbox[event.ID] = *event
	return nil
}

func (r outboxRepo) GetPendingEventsWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	now := r.tx.now()
	var pending []*model.OutboxEvent
	for _, e := range r.tx.state.outbox {
		if e.Status == model.OutboxStatusProcessed {
			continue
		}
		if e.Status == model.OutboxStatusFailed && e.RetryAt == nil {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		e := e
		pending = append(pending, &e)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r outboxRepo) Lease(_ context.Context, ids []uuid.UUID, until time.Time) error {
	for _, id := range ids {
		e, ok := r.tx.state.outbox[id]
		if !ok {
			continue
		}
		e.RetryAt = &until
		e.UpdatedAt = r.tx.now()
		r.tx.state.outbox[id] = e
	}
	return nil
}

func (r outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	e, ok := r.tx.state.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.tx.now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.UpdatedAt = now
	e.ErrorMessage = nil
	r.tx.state.outbox[id] = e
	return nil
}

func (r outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string, retryAt *time.Time) error {
	e, ok := r.tx.state.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errorMessage
	e.RetryCount++
	e.RetryAt = retryAt
	e.UpdatedAt = r.tx.now()
	r.tx.state.outbox[id] = e
	return nil
}

func paginate[T any](rows []T, page model.Pagination) []T {
	if page.Offset >= len(rows) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[page.Offset:end]
}
