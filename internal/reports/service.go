package reports

import (
	"context"
	"strconv"

	"mercado/internal/logger"
)

// Service is the regulator workflow over persisted reports.
type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

func (s *Service) List(ctx context.Context) ([]Report, error) {
	return s.repo.List(ctx)
}

// Get looks a report up by its textual id. An id that is not a number
// cannot name a report, so it is reported as not found.
func (s *Service) Get(ctx context.Context, rawID string) (Report, error) {
	id, err := parseID(rawID)
	if err != nil {
		return Report{}, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateStatus moves a report to target. Any of the three states may be
// set from any other; the target is validated before the lookup.
func (s *Service) UpdateStatus(ctx context.Context, rawID, target string) (Report, error) {
	status, err := ParseStatus(target)
	if err != nil {
		return Report{}, err
	}

	id, err := parseID(rawID)
	if err != nil {
		return Report{}, err
	}

	report, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return Report{}, err
	}

	s.logger.InfowCtx(ctx, "Report status updated", "report_id", id, "estado", status)
	return report, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrReportNotFound.WithDetail("id", raw)
	}
	return id, nil
}
