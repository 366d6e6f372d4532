package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile = "local_file"
	SourceTypeObject    = "object"
)

// ModifyRequest describes one source image, the commands applied to it
// and the outputs to produce. Without variants the base commands are
// exported to Destination; with variants every variant starts from the
// base pipeline and adds its own commands, and the request-level
// Destination and MimeType must be empty.
type ModifyRequest struct {
	SourceType  string    `json:"source_type" validate:"required,oneof=local_file object"`
	Source      string    `json:"source" validate:"required"`
	Destination string    `json:"destination,omitempty"`
	MimeType    string    `json:"mime_type,omitempty"`
	Operations  []string  `json:"operations,omitempty" validate:"dive,required"`
	Variants    []Variant `json:"variants,omitempty" validate:"dive"`
	WebhookURL  string    `json:"webhook_url,omitempty" validate:"omitempty,http_url"`
}

type Variant struct {
	Name        string   `json:"name" validate:"required"`
	Destination string   `json:"destination" validate:"required"`
	MimeType    string   `json:"mime_type,omitempty"`
	Operations  []string `json:"operations,omitempty" validate:"dive,required"`
}

type Job struct {
	ID        string
	Status    string
	Request   ModifyRequest
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r ModifyRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid request: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid request: %w", err)
	}

	if len(r.Variants) > 0 && (r.Destination != "" || r.MimeType != "") {
		return errors.New("invalid request: destination and mime_type are set per variant when variants are given")
	}

	seen := make(map[string]struct{}, len(r.Variants))
	for i, v := range r.Variants {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		if _, dup := seen[name]; dup {
			return fmt.Errorf("variants[%d]: duplicate name %q", i, v.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Outputs flattens the request into the list of exports it asks for.
func (r ModifyRequest) Outputs() []Variant {
	if len(r.Variants) == 0 {
		return []Variant{{
			Name:        "default",
			Destination: r.Destination,
			MimeType:    r.MimeType,
		}}
	}
	return r.Variants
}
