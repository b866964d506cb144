package domain

import "fmt"

// DocumentType selects the extraction strategy and MRZ layout for a document.
type DocumentType int

const (
	DniFront DocumentType = iota
	DniBack
	NieFront
	NieBack
	Passport
	Other
)

// AllDocumentTypes lists every variant in declaration order.
var AllDocumentTypes = []DocumentType{DniFront, DniBack, NieFront, NieBack, Passport, Other}

func (t DocumentType) String() string {
	switch t {
	case DniFront:
		return "dni_front"
	case DniBack:
		return "dni_back"
	case NieFront:
		return "nie_front"
	case NieBack:
		return "nie_back"
	case Passport:
		return "passport"
	case Other:
		return "other"
	}
	return fmt.Sprintf("DocumentType(%d)", int(t))
}

func (t DocumentType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IsFront reports whether t is the photo side of a Spanish ID card.
func (t DocumentType) IsFront() bool {
	return t == DniFront || t == NieFront
}

// IsBack reports whether t is the address/MRZ side of a Spanish ID card.
func (t DocumentType) IsBack() bool {
	return t == DniBack || t == NieBack
}

func (t DocumentType) IsNIE() bool {
	return t == NieFront || t == NieBack
}

// Back returns the back side of the same family. Passport and Other are returned unchanged.
func (t DocumentType) Back() DocumentType {
	switch t {
	case DniFront:
		return DniBack
	case NieFront:
		return NieBack
	}
	return t
}

// Front returns the front side of the same family.
func (t DocumentType) Front() DocumentType {
	switch t {
	case DniBack:
		return DniFront
	case NieBack:
		return NieFront
	}
	return t
}

// AsNIE moves a DNI type to the NIE family keeping the side.
func (t DocumentType) AsNIE() DocumentType {
	switch t {
	case DniFront:
		return NieFront
	case DniBack:
		return NieBack
	}
	return t
}

// AsDNI moves a NIE type to the DNI family keeping the side.
func (t DocumentType) AsDNI() DocumentType {
	switch t {
	case NieFront:
		return DniFront
	case NieBack:
		return DniBack
	}
	return t
}
