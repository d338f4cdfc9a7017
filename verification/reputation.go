package verification

import (
	"math"

	"github.com/eduverify/credtrust/storage/model"
)

// Reputation weights and caps
const (
	confidenceWeight     = 0.6
	verificationsDivisor = 10
	verificationsCap     = 40
	maxScore             = 100
)

// Trust tiers derived from the reputation score
const (
	TierHighlyTrusted = "highly_trusted"
	TierVerified      = "verified"
	TierRegistered    = "registered"
)

// Reputation is the reputation block of an institution. It is derived from
// the institution's certificates at query time and never stored.
type Reputation struct {
	InstitutionName    string  `json:"institution_name"`
	Score              int     `json:"score"`
	Tier               string  `json:"tier"`
	TotalCertificates  int     `json:"total_certificates"`
	TotalVerifications int64   `json:"total_verifications"`
	AverageConfidence  float64 `json:"average_confidence"`
}

// Score computes
// min(100, round(avgConfidence*0.6 + min(totalVerifications/10, 40)))
func Score(avgConfidence float64, totalVerifications int64) int {
	v := avgConfidence*confidenceWeight + math.Min(float64(totalVerifications)/verificationsDivisor, verificationsCap)
	score := int(math.Round(v))
	if score > maxScore {
		return maxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// Tier returns the trust tier of a reputation score
func Tier(score int) string {
	switch {
	case score >= 80:
		return TierHighlyTrusted
	case score >= 60:
		return TierVerified
	default:
		return TierRegistered
	}
}

// ComputeReputation aggregates the passed certificates of one institution.
// An institution without certificates scores 0.
func ComputeReputation(institutionName string, certs []model.Certificate) Reputation {
	rep := Reputation{
		InstitutionName:   institutionName,
		TotalCertificates: len(certs),
	}
	if len(certs) == 0 {
		rep.Tier = Tier(0)
		return rep
	}
	var confidence int
	for _, c := range certs {
		confidence += c.AIConfidenceScore
		rep.TotalVerifications += c.VerificationCount
	}
	rep.AverageConfidence = float64(confidence) / float64(len(certs))
	rep.Score = Score(rep.AverageConfidence, rep.TotalVerifications)
	rep.Tier = Tier(rep.Score)
	return rep
}
