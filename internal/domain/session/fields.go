package session

// DocumentType enum for the interview.
type DocumentType string

const (
	TypePowerOfAttorney    DocumentType = "power-of-attorney"
	TypeServiceAgreement   DocumentType = "service-agreement"
	TypeLeaseAgreement     DocumentType = "lease-agreement"
	TypeEmploymentContract DocumentType = "employment-contract"
	TypeSaleContract       DocumentType = "sale-contract"
	TypeNDA                DocumentType = "nda"
)

// requiredFields is the explicit completeness criterion per document type.
// The state machine advances only when every listed field has an answer.
var requiredFields = map[DocumentType][]string{
	TypePowerOfAttorney:    {"principal_name", "agent_name", "scope"},
	TypeServiceAgreement:   {"client_name", "contractor_name", "subject", "payment_terms"},
	TypeLeaseAgreement:     {"landlord_name", "tenant_name", "property", "rent"},
	TypeEmploymentContract: {"employer_name", "employee_name", "position", "salary"},
	TypeSaleContract:       {"seller_name", "buyer_name", "item", "price"},
	TypeNDA:                {"disclosing_party", "receiving_party", "subject"},
}

// KnownDocumentTypes lists the types the interview can infer, in a stable order.
func KnownDocumentTypes() []DocumentType {
	return []DocumentType{
		TypePowerOfAttorney,
		TypeServiceAgreement,
		TypeLeaseAgreement,
		TypeEmploymentContract,
		TypeSaleContract,
		TypeNDA,
	}
}

// IsKnownDocumentType reports whether the table has an entry for dt.
func IsKnownDocumentType(dt DocumentType) bool {
	_, ok := requiredFields[dt]
	return ok
}

// RequiredFields returns a copy of the required-field list for dt.
func RequiredFields(dt DocumentType) []string {
	fields := requiredFields[dt]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
