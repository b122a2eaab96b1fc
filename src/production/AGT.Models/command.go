package agtmodels

import "time"

// CommandStatus values. Transitions are monotonic forward:
// pending -> sent -> {executed, failed}. pending only exists inside the
// issuing call; a stored command is always sent or terminal.
type CommandStatus string

const (
	CommandPending  CommandStatus = "pending"
	CommandSent     CommandStatus = "sent"
	CommandExecuted CommandStatus = "executed"
	CommandFailed   CommandStatus = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s CommandStatus) Terminal() bool {
	return s == CommandExecuted || s == CommandFailed
}

// Command is an operator instruction for an actuator, retrieved by the
// physical device through polling.
type Command struct {
	ID         int64                  `json:"id" db:"id"`
	DeviceID   string                 `json:"device_id" db:"device_id"`
	Command    string                 `json:"command" db:"command"`
	Parameters map[string]interface{} `json:"parameters,omitempty" db:"parameters"`
	Status     CommandStatus          `json:"status" db:"status"`
	SentAt     *time.Time             `json:"sent_at,omitempty" db:"sent_at"`
	ExecutedAt *time.Time             `json:"executed_at,omitempty" db:"executed_at"`
	Response   map[string]interface{} `json:"response,omitempty" db:"response"`
	IssuedBy   string                 `json:"issued_by" db:"issued_by"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
