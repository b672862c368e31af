package models

import "time"

// Documents written to the document store. Every document carries a
// deterministic _id so retried writes upsert instead of duplicating.

type FinanceTransaction struct {
	ID          string    `bson:"_id" json:"id"`
	Source      string    `bson:"source" json:"source"`
	SourceID    int64     `bson:"source_id" json:"source_id"`
	Kind        string    `bson:"kind" json:"kind"`
	Counterpart string    `bson:"counterpart" json:"counterpart"`
	Amount      string    `bson:"amount" json:"amount"`
	Method      string    `bson:"method,omitempty" json:"method,omitempty"`
	RecordedBy  string    `bson:"recorded_by" json:"recorded_by"`
	RecordedAt  time.Time `bson:"recorded_at" json:"recorded_at"`
}

type DailyTask struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Category    string    `bson:"category" json:"category"`
	ReferenceID int64     `bson:"reference_id" json:"reference_id"`
	AssignedTo  string    `bson:"assigned_to" json:"assigned_to"`
	Completed   bool      `bson:"completed" json:"completed"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type ApprovalAudit struct {
	ID         string        `bson:"_id" json:"id"`
	RequestID  int64         `bson:"request_id" json:"request_id"`
	Kind       RequestKind   `bson:"kind" json:"kind"`
	Stage      Stage         `bson:"stage" json:"stage"`
	Approved   bool          `bson:"approved" json:"approved"`
	Actor      string        `bson:"actor" json:"actor"`
	Reason     string        `bson:"reason,omitempty" json:"reason,omitempty"`
	FromStatus RequestStatus `bson:"from_status" json:"from_status"`
	ToStatus   RequestStatus `bson:"to_status" json:"to_status"`
	Version    int           `bson:"version" json:"version"`
	At         time.Time     `bson:"at" json:"at"`
}

type EmployeeMirror struct {
	EmployeeID  int64     `bson:"_id" json:"employee_id"`
	Name        string    `bson:"name" json:"name"`
	Email       string    `bson:"email" json:"email"`
	Phone       string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Role        string    `bson:"role" json:"role"`
	Permissions []string  `bson:"permissions" json:"permissions"`
	Active      bool      `bson:"active" json:"active"`
	SyncedAt    time.Time `bson:"synced_at" json:"synced_at"`
}
