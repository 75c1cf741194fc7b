package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helpline-labs/escalation-gateway/internal/auth"
	"github.com/helpline-labs/escalation-gateway/internal/domain"
	"github.com/helpline-labs/escalation-gateway/internal/idempotency"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Caller carries the transport level facts about who sent a request.
type Caller struct {
	Credentials auth.Credentials
	Body        []byte
	RemoteAddr  string
	RequestID   string
}

// Request is an escalation as parsed from the wire.
type Request struct {
	Note             string        `json:"note" validate:"required,min=10,max=350"`
	Category         string        `json:"category,omitempty" validate:"omitempty,max=64"`
	EscalationReason string        `json:"escalationReason,omitempty" validate:"omitempty,max=64"`
	Confidence       string        `json:"confidence,omitempty" validate:"omitempty,max=32"`
	CallerNumber     string        `json:"callerNumber,omitempty" validate:"omitempty,e164"`
	OAKey            string        `json:"oaKey,omitempty" validate:"omitempty,max=256"`
	Source           domain.Source `json:"source,omitempty" validate:"omitempty,oneof=phone chat sms email web"`
	IdempotencyKey   string        `json:"idempotencyKey,omitempty" validate:"omitempty,max=256"`
}

// Validate checks field shapes. Enumerations and the note format are checked
// during normalization.
func (r *Request) Validate() error {
	return structError(validate.Struct(r))
}

// Fingerprint hashes every field except the idempotency key itself.
func (r Request) Fingerprint() string {
	r.IdempotencyKey = ""
	payload, err := json.Marshal(r)
	if err != nil {
		// Request holds only strings; Marshal cannot fail.
		panic(fmt.Sprintf("encode request: %v", err))
	}
	return idempotency.Fingerprint(payload)
}

// Echo repeats the caller supplied correlation values.
type Echo struct {
	OAKey        string `json:"oaKey,omitempty"`
	CallerNumber string `json:"callerNumber,omitempty"`
}

// Response is the outcome of a completed escalation.
type Response struct {
	Success          bool                    `json:"success"`
	Created          bool                    `json:"created"`
	TicketID         string                  `json:"ticketId"`
	TicketURL        string                  `json:"ticketUrl"`
	Category         domain.Category         `json:"category"`
	EscalationReason domain.EscalationReason `json:"escalationReason"`
	Confidence       string                  `json:"confidence"`
	Echo             Echo                    `json:"echo"`
}

// AppendNoteRequest adds a note to an existing ticket.
type AppendNoteRequest struct {
	TicketID string `json:"ticketId" validate:"required,max=128"`
	Note     string `json:"note" validate:"required,max=350"`
	Author   string `json:"author,omitempty" validate:"omitempty,max=128"`
}

// Validate checks field shapes.
func (r *AppendNoteRequest) Validate() error {
	return structError(validate.Struct(r))
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidationError("", err.Error())
	}
	fe := verrs[0]
	return apperrors.NewValidationError(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "e164":
		return fmt.Sprintf("%s must be an international phone number", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
