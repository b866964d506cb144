// Package score turns extracted fields into a confidence in [0,1].
package score

import (
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

// Score is the weighted share of present fields.
type Score struct {
	Total    float64            `json:"total"`
	PerField map[string]float64 `json:"per_field"`
}

// ChecksumField names the checksum bonus in Score.PerField.
const ChecksumField = "checksum"

type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// weights lists the weighted fields for document type t. Back sides also weigh
// the address block.
func (s *Scorer) weights(t domain.DocumentType) map[string]float64 {
	w := s.cfg.Weights
	weights := map[string]float64{
		domain.FieldDocumentNumber: w.DocumentNumber,
		domain.FieldFirstName:      w.FirstName,
		domain.FieldLastNames:      w.LastNames,
		domain.FieldBirthDate:      w.BirthDate,
		domain.FieldGender:         w.Gender,
		domain.FieldNationality:    w.Nationality,
		domain.FieldExpiryDate:     w.ExpiryDate,
	}
	if t.IsBack() {
		weights[domain.FieldAddress] = w.Address
		weights[domain.FieldPostalCode] = w.PostalCode
		weights[domain.FieldProvince] = w.Province
		weights[domain.FieldMunicipality] = w.Municipality
	}
	return weights
}

// Score computes sum(weight of present fields) / sum(all weights), counting the
// checksum bonus when checksumValid. Adding a field never lowers the total.
func (s *Scorer) Score(fields domain.ExtractedFields, checksumValid bool, t domain.DocumentType) Score {
	weights := s.weights(t)
	sc := Score{PerField: make(map[string]float64, len(weights)+1)}

	total := s.cfg.Weights.ChecksumBonus
	var got float64
	for _, name := range domain.FieldNames {
		w, ok := weights[name]
		if !ok {
			continue
		}
		total += w
		if fields.Has(name) {
			got += w
			sc.PerField[name] = w
		}
	}
	if checksumValid {
		got += s.cfg.Weights.ChecksumBonus
		sc.PerField[ChecksumField] = s.cfg.Weights.ChecksumBonus
	}

	if total > 0 {
		sc.Total = got / total
	}
	return sc
}

// FormatValid reports whether the score clears the format threshold.
func (s *Scorer) FormatValid(total float64) bool {
	return total > s.cfg.FormatThreshold
}

// Accepted reports whether the score clears the acceptance floor.
func (s *Scorer) Accepted(total float64) bool {
	return total >= s.cfg.MinConfidence
}

// MinConfidence is the acceptance floor.
func (s *Scorer) MinConfidence() float64 {
	return s.cfg.MinConfidence
}
