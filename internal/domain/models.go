package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	DocTitleDeed       DocumentKind = "title_deed"
	DocPattaChitta     DocumentKind = "patta_chitta"
	DocEC              DocumentKind = "ec"
	DocParentalDoc     DocumentKind = "parental_doc"
	DocPowerOfAttorney DocumentKind = "power_of_attorney"
	DocLandTaxReceipt  DocumentKind = "land_tax_receipt"
	DocStreetView      DocumentKind = "street_view"
	DocEntranceView    DocumentKind = "entrance_view"
	DocInsideView      DocumentKind = "inside_view"
	DocDroneView       DocumentKind = "drone_view"

	// DocGeneral covers supporting documents with no named slot on the property.
	DocGeneral DocumentKind = "document"
)

// NamedDocumentKinds are the documents a property keeps a reference to.
var NamedDocumentKinds = []DocumentKind{
	DocTitleDeed,
	DocPattaChitta,
	DocEC,
	DocParentalDoc,
	DocPowerOfAttorney,
	DocLandTaxReceipt,
	DocStreetView,
	DocEntranceView,
	DocInsideView,
	DocDroneView,
}

// photoFormFields maps the upload form's photo fields onto their document kind.
var photoFormFields = map[string]DocumentKind{
	"photo_street":   DocStreetView,
	"photo_entrance": DocEntranceView,
	"photo_inside":   DocInsideView,
	"photo_drone":    DocDroneView,
}

func ParseDocumentKind(v string) (DocumentKind, error) {
	v = strings.TrimSpace(v)
	if kind, ok := photoFormFields[v]; ok {
		return kind, nil
	}
	if v == string(DocGeneral) || v == "documents" {
		return DocGeneral, nil
	}
	for _, kind := range NamedDocumentKinds {
		if v == string(kind) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: unknown document kind %q", ErrBadRequest, v)
}

func (k DocumentKind) Named() bool {
	return k != DocGeneral && k != ""
}

type Property struct {
	ID                   int64                   `json:"id"`
	PropertyID           string                  `json:"property_id"`
	SubmittedBy          string                  `json:"submitted_by"`
	AgentName            string                  `json:"agent_name"`
	AgentCode            string                  `json:"agent_code"`
	AgentPhone           string                  `json:"agent_phone"`
	State                string                  `json:"state"`
	City                 string                  `json:"city"`
	Street               string                  `json:"street"`
	Pincode              string                  `json:"pincode"`
	GoogleCode           string                  `json:"google_code,omitempty"`
	EntranceDirection    string                  `json:"entrance_direction"`
	OwnerName            string                  `json:"owner_name"`
	OwnerEmail           string                  `json:"owner_email"`
	OwnerMobile          string                  `json:"owner_mobile"`
	Location             string                  `json:"location"`
	Category             string                  `json:"category"`
	PropertySize         string                  `json:"property_size"`
	Dimensions           string                  `json:"dimensions"`
	OwnershipType        string                  `json:"ownership_type"`
	SaleType             string                  `json:"sale_type"`
	ApprovalType         string                  `json:"approval_type"`
	Address              string                  `json:"address"`
	EntranceFacing       string                  `json:"entrance_facing"`
	SellerPrice          decimal.NullDecimal     `json:"seller_price"`
	NeighbourhoodPricing decimal.NullDecimal     `json:"neighbourhood_pricing"`
	AskingPrice          decimal.NullDecimal     `json:"asking_price"`
	FinalPrice           decimal.NullDecimal     `json:"final_price"`
	Documents            map[DocumentKind]string `json:"documents"`
	Workflow             ApprovalState           `json:"-"`
	SubmissionDate       time.Time               `json:"submission_date"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}
