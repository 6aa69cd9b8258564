// Package record defines the closed family of normalized vendor records.
//
// Every record attached to a completed service result carries a shared
// header (identity, type tag, source jurisdiction, record date, and a hash
// of the raw vendor record for provenance) plus variant-specific fields.
// The family is closed: unknown type tags are rejected at decode time.
package record

import (
	"strings"
	"time"

	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

// Type discriminates the record variants.
type Type string

const (
	TypeCriminal   Type = "criminal"
	TypeEmployment Type = "employment"
	TypeEducation  Type = "education"
	TypeIdentity   Type = "identity"
	TypeAddress    Type = "address"
	TypeSanctions  Type = "sanctions"
	TypeDriving    Type = "driving"
	TypeDrugTest   Type = "drug_test"
)

// IsValid reports whether the type tag names a known variant.
func (t Type) IsValid() bool {
	switch t {
	case TypeCriminal, TypeEmployment, TypeEducation, TypeIdentity,
		TypeAddress, TypeSanctions, TypeDriving, TypeDrugTest:
		return true
	default:
		return false
	}
}

// Header carries the fields shared by every record variant.
type Header struct {
	ID           string     `json:"id"`
	Jurisdiction string     `json:"jurisdiction"`
	RecordDate   *time.Time `json:"record_date,omitempty"`
	RawHash      string     `json:"raw_hash"`
}

// Record is the closed interface over the normalized record variants.
type Record interface {
	RecordType() Type
	RecordHeader() Header
	// sealed restricts implementations to this package.
	sealed()
}

// Criminal captures a criminal-history record.
type Criminal struct {
	Header
	Offense     string     `json:"offense"`
	Disposition string     `json:"disposition,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	OffenseDate *time.Time `json:"offense_date,omitempty"`
	CourtName   string     `json:"court_name,omitempty"`
}

// Employment captures an employment-verification record.
type Employment struct {
	Header
	Employer  string     `json:"employer"`
	Title     string     `json:"title,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Verified  bool       `json:"verified"`
}

// Education captures an education-verification record.
type Education struct {
	Header
	Institution    string     `json:"institution"`
	Degree         string     `json:"degree,omitempty"`
	GraduationDate *time.Time `json:"graduation_date,omitempty"`
	Verified       bool       `json:"verified"`
}

// Identity captures an identity-document verification record.
type Identity struct {
	Header
	DocumentType         string `json:"document_type"`
	DocumentNumberMasked string `json:"document_number_masked,omitempty"`
	Match                bool   `json:"match"`
}

// Address captures an address-history record.
type Address struct {
	Header
	Street     string     `json:"street,omitempty"`
	City       string     `json:"city"`
	Region     string     `json:"region,omitempty"`
	PostalCode string     `json:"postal_code,omitempty"`
	FromDate   *time.Time `json:"from_date,omitempty"`
	ToDate     *time.Time `json:"to_date,omitempty"`
}

// Sanctions captures a watchlist/sanctions match record.
type Sanctions struct {
	Header
	ListName   string  `json:"list_name"`
	Entity     string  `json:"entity,omitempty"`
	MatchScore float64 `json:"match_score"`
}

// Driving captures a motor-vehicle record.
type Driving struct {
	Header
	LicenseClass   string `json:"license_class,omitempty"`
	ViolationCount int    `json:"violation_count"`
	Suspended      bool   `json:"suspended"`
}

// DrugTest captures a drug-screening record.
type DrugTest struct {
	Header
	Panel       string     `json:"panel"`
	Outcome     string     `json:"outcome"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

func (r Criminal) RecordType() Type   { return TypeCriminal }
func (r Employment) RecordType() Type { return TypeEmployment }
func (r Education) RecordType() Type  { return TypeEducation }
func (r Identity) RecordType() Type   { return TypeIdentity }
func (r Address) RecordType() Type    { return TypeAddress }
func (r Sanctions) RecordType() Type  { return TypeSanctions }
func (r Driving) RecordType() Type    { return TypeDriving }
func (r DrugTest) RecordType() Type   { return TypeDrugTest }

func (r Criminal) RecordHeader() Header   { return r.Header }
func (r Employment) RecordHeader() Header { return r.Header }
func (r Education) RecordHeader() Header  { return r.Header }
func (r Identity) RecordHeader() Header   { return r.Header }
func (r Address) RecordHeader() Header    { return r.Header }
func (r Sanctions) RecordHeader() Header  { return r.Header }
func (r Driving) RecordHeader() Header    { return r.Header }
func (r DrugTest) RecordHeader() Header   { return r.Header }

func (Criminal) sealed()   {}
func (Employment) sealed() {}
func (Education) sealed()  {}
func (Identity) sealed()   {}
func (Address) sealed()    {}
func (Sanctions) sealed()  {}
func (Driving) sealed()    {}
func (DrugTest) sealed()   {}

// Validate checks the shared header and variant-required fields.
func Validate(r Record) error {
	if r == nil {
		return domainerrors.New(domainerrors.CodeRecordInvalid, "record is required")
	}
	header := r.RecordHeader()
	if strings.TrimSpace(header.ID) == "" {
		return domainerrors.New(domainerrors.CodeRecordInvalid, "record id is required")
	}
	if strings.TrimSpace(header.RawHash) == "" {
		return domainerrors.New(domainerrors.CodeRecordInvalid, "record raw hash is required")
	}
	switch typed := r.(type) {
	case Criminal:
		if strings.TrimSpace(typed.Offense) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "criminal record offense is required")
		}
	case Employment:
		if strings.TrimSpace(typed.Employer) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "employment record employer is required")
		}
	case Education:
		if strings.TrimSpace(typed.Institution) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "education record institution is required")
		}
	case Identity:
		if strings.TrimSpace(typed.DocumentType) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "identity record document type is required")
		}
	case Address:
		if strings.TrimSpace(typed.City) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "address record city is required")
		}
	case Sanctions:
		if strings.TrimSpace(typed.ListName) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "sanctions record list name is required")
		}
	case DrugTest:
		if strings.TrimSpace(typed.Panel) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "drug test record panel is required")
		}
		if strings.TrimSpace(typed.Outcome) == "" {
			return domainerrors.New(domainerrors.CodeRecordInvalid, "drug test record outcome is required")
		}
	}
	return nil
}
