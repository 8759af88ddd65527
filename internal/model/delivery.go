package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusToBeProcessed DeliveryStatus = "To Be Processed"
	DeliveryStatusInProcess     DeliveryStatus = "In Process"
	DeliveryStatusCompleted     DeliveryStatus = "Completed"
	DeliveryStatusError         DeliveryStatus = "Error Occurred"
)

// Terminal reports whether the dispatcher is done with an item in this status.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusCompleted || s == DeliveryStatusError
}

// CanTransition reports whether the dispatcher may move an item from s to next.
// Returning an item to DeliveryStatusToBeProcessed is an operator action and
// never allowed here.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	switch s {
	case DeliveryStatusToBeProcessed:
		return next == DeliveryStatusInProcess
	case DeliveryStatusInProcess:
		return next == DeliveryStatusCompleted || next == DeliveryStatusError
	default:
		return false
	}
}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusToBeProcessed, DeliveryStatusInProcess, DeliveryStatusCompleted, DeliveryStatusError:
		return true
	}
	return false
}

type TargetType string

const (
	TargetTo      TargetType = "To"
	TargetCc      TargetType = "Cc"
	TargetBcc     TargetType = "Bcc"
	TargetReplyTo TargetType = "Reply To"
)

type SystemType string

const (
	SystemSMTP     SystemType = "SMTP"
	SystemExchange SystemType = "Exchange"
	SystemSMS      SystemType = "SMS"
)

type DeliveryItem struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	Subject          string         `db:"subject" json:"subject"`
	Body             string         `db:"body" json:"body"`
	Status           DeliveryStatus `db:"status" json:"status"`
	DeliverySystemID uuid.UUID      `db:"delivery_system_id" json:"delivery_system_id"`
	ErrorText        *string        `db:"error_text" json:"error_text,omitempty"`
	CompletedDate    *time.Time     `db:"completed_date" json:"completed_date,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`

	Targets        []DeliveryTarget `db:"-" json:"targets"`
	DeliverySystem *DeliverySystem  `db:"-" json:"-"`
}

// AddTargets appends one target of the given type per address.
func (d *DeliveryItem) AddTargets(t TargetType, addresses ...string) {
	for _, a := range addresses {
		d.Targets = append(d.Targets, DeliveryTarget{Type: t, Address: a})
	}
}

type DeliveryTarget struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	DeliveryItemID uuid.UUID  `db:"delivery_item_id" json:"delivery_item_id"`
	Type           TargetType `db:"type" json:"type"`
	Address        string     `db:"address" json:"address"`
}

// DeliverySystem is the transport configuration a delivery item is sent through.
type DeliverySystem struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	SystemType        SystemType `db:"system_type" json:"system_type"`
	ServerAddress     string     `db:"server_address" json:"server_address"`
	Port              int        `db:"port" json:"port"`
	UserName          string     `db:"user_name" json:"user_name"`
	UserDomain        string     `db:"user_domain" json:"user_domain"`
	PasswordEncrypted string     `db:"password_encrypted" json:"-"`
	EnableSSL         bool       `db:"enable_ssl" json:"enable_ssl"`
	EmailAddress      string     `db:"email_address" json:"email_address"`
	BodyIsHTML        bool       `db:"body_is_html" json:"body_is_html"`

	// Password is the decrypted credential; never persisted.
	Password string `db:"-" json:"-"`
}
