package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Payer is the identity a browser submits when reserving a seat.
type Payer struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=150"`
	Email       string `json:"email" validate:"required,email,max=200"`
	Phone       string `json:"phone" validate:"required,min=7,max=30"`
	Company     string `json:"company" validate:"max=200"`
	LinkedInURL string `json:"linkedin_url" validate:"omitempty,url,max=500"`
	UTMSource   string `json:"utm_source" validate:"max=100"`
	UTMMedium   string `json:"utm_medium" validate:"max=100"`
	UTMCampaign string `json:"utm_campaign" validate:"max=100"`
}

// Normalize trims every field and canonicalizes the email address.
func (p *Payer) Normalize() {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = NormalizeEmail(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Company = strings.TrimSpace(p.Company)
	p.LinkedInURL = strings.TrimSpace(p.LinkedInURL)
	p.UTMSource = strings.TrimSpace(p.UTMSource)
	p.UTMMedium = strings.TrimSpace(p.UTMMedium)
	p.UTMCampaign = strings.TrimSpace(p.UTMCampaign)
}

func (p *Payer) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// ApplyTo copies the payer identity onto an enrollment row.
func (p Payer) ApplyTo(e *Enrollment) {
	e.FullName = p.FullName
	e.Email = p.Email
	e.Phone = p.Phone
	e.Company = p.Company
	e.LinkedInURL = p.LinkedInURL
	e.UTMSource = p.UTMSource
	e.UTMMedium = p.UTMMedium
	e.UTMCampaign = p.UTMCampaign
}
