package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	lakh  = decimal.NewFromInt(100_000)
	crore = decimal.NewFromInt(10_000_000)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Submission is the payload of a new property listing.
type Submission struct {
	SubmittedBy          string `json:"submitted_by" form:"submitted_by" validate:"required"`
	AgentName            string `json:"agent_name" form:"agent_name" validate:"required"`
	AgentCode            string `json:"agent_code" form:"agent_code" validate:"required"`
	AgentPhone           string `json:"agent_phone" form:"agent_phone" validate:"required"`
	State                string `json:"state" form:"state" validate:"required"`
	City                 string `json:"city" form:"city" validate:"required"`
	Street               string `json:"street" form:"street" validate:"required"`
	Pincode              string `json:"pincode" form:"pincode" validate:"required"`
	GoogleCode           string `json:"google_code" form:"google_code"`
	EntranceDirection    string `json:"entrance_direction" form:"entrance_direction" validate:"required"`
	OwnerName            string `json:"owner_name" form:"owner_name" validate:"required"`
	OwnerEmail           string `json:"owner_email" form:"owner_email" validate:"required,email"`
	OwnerMobile          string `json:"owner_mobile" form:"owner_mobile" validate:"required"`
	Location             string `json:"location" form:"location" validate:"required"`
	Category             string `json:"category" form:"category" validate:"required"`
	PropertySize         string `json:"property_size" form:"property_size" validate:"required"`
	Dimensions           string `json:"dimensions" form:"dimensions" validate:"required"`
	OwnershipType        string `json:"ownership_type" form:"ownership_type" validate:"required"`
	SaleType             string `json:"sale_type" form:"sale_type" validate:"required"`
	ApprovalType         string `json:"approval_type" form:"approval_type" validate:"required"`
	Address              string `json:"address" form:"address" validate:"required"`
	EntranceFacing       string `json:"entrance_facing" form:"entrance_facing" validate:"required"`
	SellerPrice          string `json:"seller_price" form:"seller_price" validate:"required"`
	NeighbourhoodPricing string `json:"neighbourhood_pricing" form:"neighbourhood_pricing" validate:"required"`
	AskingPrice          string `json:"asking_price" form:"asking_price"`
	FinalPrice           string `json:"final_price" form:"final_price"`
}

func (s *Submission) Normalize() {
	v := reflect.ValueOf(s).Elem()
	for i := 0; i < v.NumField(); i++ {
		if f := v.Field(i); f.Kind() == reflect.String {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}

// Validate reports the first missing or malformed field.
func (s *Submission) Validate() error {
	s.Normalize()
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	first := verrs[0]
	if first.Tag() == "required" {
		return fmt.Errorf("%w: %s is required.", ErrBadRequest, first.Field())
	}
	return fmt.Errorf("%w: %s is not a valid %s.", ErrBadRequest, first.Field(), first.Tag())
}

// ToProperty validates s and builds the property it describes, at the start
// of the workflow.
func (s Submission) ToProperty(propertyID string, now time.Time) (Property, error) {
	if err := s.Validate(); err != nil {
		return Property{}, err
	}

	prices := map[string]string{
		"seller_price":          s.SellerPrice,
		"neighbourhood_pricing": s.NeighbourhoodPricing,
		"asking_price":          s.AskingPrice,
		"final_price":           s.FinalPrice,
	}
	parsed := make(map[string]decimal.NullDecimal, len(prices))
	for field, raw := range prices {
		amount, err := ParseIndianNumber(raw)
		if err != nil {
			return Property{}, fmt.Errorf("%w: %s: %v", ErrBadRequest, field, err)
		}
		parsed[field] = amount
	}

	return Property{
		PropertyID:           propertyID,
		SubmittedBy:          s.SubmittedBy,
		AgentName:            s.AgentName,
		AgentCode:            s.AgentCode,
		AgentPhone:           s.AgentPhone,
		State:                s.State,
		City:                 s.City,
		Street:               s.Street,
		Pincode:              s.Pincode,
		GoogleCode:           s.GoogleCode,
		EntranceDirection:    s.EntranceDirection,
		OwnerName:            s.OwnerName,
		OwnerEmail:           s.OwnerEmail,
		OwnerMobile:          s.OwnerMobile,
		Location:             s.Location,
		Category:             s.Category,
		PropertySize:         s.PropertySize,
		Dimensions:           s.Dimensions,
		OwnershipType:        s.OwnershipType,
		SaleType:             s.SaleType,
		ApprovalType:         s.ApprovalType,
		Address:              s.Address,
		EntranceFacing:       s.EntranceFacing,
		SellerPrice:          parsed["seller_price"],
		NeighbourhoodPricing: parsed["neighbourhood_pricing"],
		AskingPrice:          parsed["asking_price"],
		FinalPrice:           parsed["final_price"],
		Documents:            map[DocumentKind]string{},
		Workflow:             NewApprovalState(),
		SubmissionDate:       now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ParseIndianNumber parses an amount written in lakh ("12lk") or crore
// ("1.5cr") shorthand, or as a plain number. Blank input is a null amount.
func ParseIndianNumber(v string) (decimal.NullDecimal, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return decimal.NullDecimal{}, nil
	}

	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(v, "lk"):
		multiplier = lakh
		v = strings.TrimSuffix(v, "lk")
	case strings.HasSuffix(v, "cr"):
		multiplier = crore
		v = strings.TrimSuffix(v, "cr")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q", v)
	}
	return decimal.NewNullDecimal(amount.Mul(multiplier)), nil
}
