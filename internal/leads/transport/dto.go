// Package transport holds the request and response shapes of the leads API.
package transport

import (
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/sanitize"
	"crescoflow/platform/validator"
)

// Custom validation tags registered by RegisterValidations.
const (
	TagStage       = "stage"
	TagChannel     = "channel"
	TagInteraction = "interaction"
)

// RegisterValidations adds the lead vocabulary checks to val.
func RegisterValidations(val *validator.Validator) error {
	if err := val.RegisterOneOf(TagStage, domain.IsKnownStage); err != nil {
		return err
	}
	if err := val.RegisterOneOf(TagChannel, domain.IsKnownChannel); err != nil {
		return err
	}
	return val.RegisterOneOf(TagInteraction, domain.IsKnownInteractionType)
}

// ListLeadsRequest is bound from the query string.
type ListLeadsRequest struct {
	Stage           string `form:"stage" validate:"omitempty,stage"`
	Channel         string `form:"channel" validate:"omitempty,channel"`
	Sector          string `form:"sector" validate:"max=100"`
	City            string `form:"city" validate:"max=100"`
	MinConfidence   int    `form:"minConfidence" validate:"min=0,max=100"`
	Search          string `form:"search" validate:"max=200"`
	IncludeArchived bool   `form:"includeArchived"`
}

type ListLeadsResponse struct {
	Items []domain.Lead `json:"items"`
	Total int           `json:"total"`
}

type CreateLeadRequest struct {
	CompanyName     string `json:"companyName" validate:"required,min=1,max=200"`
	Sector          string `json:"sector" validate:"max=100"`
	City            string `json:"city" validate:"max=100"`
	Address         string `json:"address" validate:"max=300"`
	Website         string `json:"website" validate:"max=300"`
	CEOName         string `json:"ceoName" validate:"max=200"`
	CEOEmail        string `json:"ceoEmail" validate:"omitempty,email"`
	CEOPhone        string `json:"ceoPhone" validate:"max=30"`
	CompanyEmail    string `json:"companyEmail" validate:"omitempty,email"`
	CompanyPhone    string `json:"companyPhone" validate:"max=30"`
	ConfidenceScore *int   `json:"confidenceScore" validate:"omitempty,min=0,max=100"`
	OutboundChannel string `json:"outboundChannel" validate:"omitempty,channel"`
}

// ToLead maps the request onto a partial lead. An absent confidence score
// is derived from the fields that are present.
func (r CreateLeadRequest) ToLead() domain.Lead {
	sanitize.Fields(&r.CompanyName, &r.Sector, &r.City, &r.Address, &r.CEOName)
	l := domain.Lead{
		CompanyName:     r.CompanyName,
		Sector:          r.Sector,
		City:            r.City,
		Address:         r.Address,
		Website:         r.Website,
		CEOName:         r.CEOName,
		CEO:             domain.Person{Email: r.CEOEmail, Phone: r.CEOPhone},
		CompanyContact:  domain.Contact{Email: r.CompanyEmail, Phone: r.CompanyPhone},
		PipelineTag:     domain.StageCold,
		OutboundChannel: domain.Channel(r.OutboundChannel),
		Source:          "manual",
	}
	if r.ConfidenceScore != nil {
		l.ConfidenceScore = *r.ConfidenceScore
	} else {
		l.ConfidenceScore = domain.CompletenessScore(l)
	}
	return l
}

type UpdateStageRequest struct {
	Stage  string `json:"stage" validate:"required,stage"`
	Reason string `json:"reason" validate:"max=500"`
}

type AddInteractionRequest struct {
	Type      string     `json:"type" validate:"required,interaction"`
	Outcome   string     `json:"outcome" validate:"required,max=2000"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type BookAppointmentRequest struct {
	ScheduledDate time.Time `json:"scheduledDate" validate:"required"`
	Note          string    `json:"note" validate:"max=2000"`
}

type ImportResponse struct {
	Queued   int `json:"queued"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

type GHLImportResponse struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type StatsResponse struct {
	Total             int            `json:"total"`
	Archived          int            `json:"archived"`
	Synced            int            `json:"synced"`
	AverageConfidence float64        `json:"averageConfidence"`
	ByStage           map[string]int `json:"byStage"`
	ByChannel         map[string]int `json:"byChannel"`
}

type SyncResponse struct {
	LeadID    string `json:"leadId"`
	Queued    bool   `json:"queued"`
	ContactID string `json:"contactId,omitempty"`
}
