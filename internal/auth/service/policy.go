package service

import "fmt"

// NotifyMode decides what a failed email send does to the operation that
// triggered it.
type NotifyMode int

const (
	// BestEffort logs the failure and lets the operation succeed.
	BestEffort NotifyMode = iota
	// Required fails the operation with EMAIL_SEND_FAILED.
	Required
)

func (m NotifyMode) String() string {
	switch m {
	case BestEffort:
		return "best_effort"
	case Required:
		return "required"
	}
	return fmt.Sprintf("NotifyMode(%d)", int(m))
}

// ParseNotifyMode accepts "best_effort" or "required".
func ParseNotifyMode(s string) (NotifyMode, error) {
	switch s {
	case "best_effort":
		return BestEffort, nil
	case "required":
		return Required, nil
	}
	return BestEffort, fmt.Errorf("service: unknown notify mode %q", s)
}

// UnmarshalText lets config parsers decode a NotifyMode directly.
func (m *NotifyMode) UnmarshalText(text []byte) error {
	v, err := ParseNotifyMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// NotifyPolicy sets the NotifyMode per flow. Registration and resend have
// already committed account state by the time the email goes out, so they
// default to BestEffort; forgot-password has nothing else to show for itself
// and defaults to Required.
type NotifyPolicy struct {
	Register       NotifyMode
	Resend         NotifyMode
	ForgotPassword NotifyMode
}

func DefaultNotifyPolicy() NotifyPolicy {
	return NotifyPolicy{
		Register:       BestEffort,
		Resend:         BestEffort,
		ForgotPassword: Required,
	}
}
