package domain

// Canonical field names, also used as CSV columns and in Response.DetectedFields.
const (
	FieldDocumentNumber = "document_number"
	FieldFirstName      = "first_name"
	FieldLastNames      = "last_names"
	FieldBirthDate      = "birth_date"
	FieldExpiryDate     = "expiry_date"
	FieldIssueDate      = "issue_date"
	FieldGender         = "gender"
	FieldNationality    = "nationality"
	FieldAddress        = "address"
	FieldPostalCode     = "postal_code"
	FieldProvince       = "province"
	FieldMunicipality   = "municipality"
	FieldSupportNumber  = "support_number"
	FieldCANNumber      = "can_number"
)

// FieldNames is the canonical field order.
var FieldNames = []string{
	FieldDocumentNumber,
	FieldFirstName,
	FieldLastNames,
	FieldBirthDate,
	FieldExpiryDate,
	FieldIssueDate,
	FieldGender,
	FieldNationality,
	FieldAddress,
	FieldPostalCode,
	FieldProvince,
	FieldMunicipality,
	FieldSupportNumber,
	FieldCANNumber,
}

// ExtractedFields holds the optional values recovered from a document.
// An empty string means the field is unset.
type ExtractedFields struct {
	DocumentNumber string `json:"document_number,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastNames      string `json:"last_names,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	IssueDate      string `json:"issue_date,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	Address        string `json:"address,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	Province       string `json:"province,omitempty"`
	Municipality   string `json:"municipality,omitempty"`
	SupportNumber  string `json:"support_number,omitempty"`
	CANNumber      string `json:"can_number,omitempty"`
}

func (f *ExtractedFields) ptr(name string) *string {
	switch name {
	case FieldDocumentNumber:
		return &f.DocumentNumber
	case FieldFirstName:
		return &f.FirstName
	case FieldLastNames:
		return &f.LastNames
	case FieldBirthDate:
		return &f.BirthDate
	case FieldExpiryDate:
		return &f.ExpiryDate
	case FieldIssueDate:
		return &f.IssueDate
	case FieldGender:
		return &f.Gender
	case FieldNationality:
		return &f.Nationality
	case FieldAddress:
		return &f.Address
	case FieldPostalCode:
		return &f.PostalCode
	case FieldProvince:
		return &f.Province
	case FieldMunicipality:
		return &f.Municipality
	case FieldSupportNumber:
		return &f.SupportNumber
	case FieldCANNumber:
		return &f.CANNumber
	}
	return nil
}

// Get returns the value of a named field, or "" for unknown names.
func (f ExtractedFields) Get(name string) string {
	if p := f.ptr(name); p != nil {
		return *p
	}
	return ""
}

// Has reports whether the named field is populated.
func (f ExtractedFields) Has(name string) bool {
	return f.Get(name) != ""
}

// SetIfEmpty stores value in the named field only when the field is still unset
// and value is non-empty. It reports whether the field was written.
func (f *ExtractedFields) SetIfEmpty(name, value string) bool {
	p := f.ptr(name)
	if p == nil || *p != "" || value == "" {
		return false
	}
	*p = value
	return true
}

// Merge fills the unset fields of f from other. Populated fields are never overwritten.
func (f *ExtractedFields) Merge(other ExtractedFields) {
	for _, name := range FieldNames {
		f.SetIfEmpty(name, other.Get(name))
	}
}

// Present lists the populated field names in canonical order.
func (f ExtractedFields) Present() []string {
	present := make([]string, 0, len(FieldNames))
	for _, name := range FieldNames {
		if f.Has(name) {
			present = append(present, name)
		}
	}
	return present
}

// IsEmpty reports whether no field is populated.
func (f ExtractedFields) IsEmpty() bool {
	return len(f.Present()) == 0
}

// ValidationResult is derived from ExtractedFields by the checksum and scoring stages.
type ValidationResult struct {
	FormatValid   bool    `json:"format_valid"`
	ChecksumValid bool    `json:"checksum_valid"`
	Confidence    float64 `json:"confidence"`
}
