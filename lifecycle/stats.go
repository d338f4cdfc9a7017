package lifecycle

import (
	"context"
	"math"

	"github.com/eduverify/credtrust/storage/model"
)

// Stats aggregates a set of certificates for dashboards
type Stats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	TotalVerifications int64          `json:"total_verifications"`
	AverageConfidence  float64        `json:"average_confidence"`
}

// ComputeStats aggregates the passed certificates
func ComputeStats(certs []model.Certificate) Stats {
	stats := Stats{
		Total:    len(certs),
		ByStatus: make(map[string]int, len(model.AllStatuses)),
	}
	for _, st := range model.AllStatuses {
		stats.ByStatus[st.String()] = 0
	}
	if len(certs) == 0 {
		return stats
	}
	var confidence int
	for _, c := range certs {
		stats.ByStatus[c.Status.String()]++
		stats.TotalVerifications += c.VerificationCount
		confidence += c.AIConfidenceScore
	}
	stats.AverageConfidence = math.Round(float64(confidence)/float64(len(certs))*100) / 100
	return stats
}

// Stats returns the aggregates of the certificates selected by the query
func (s *Service) Stats(ctx context.Context, query model.CertificateQuery) (Stats, error) {
	certs, err := s.List(ctx, query)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(certs), nil
}
