package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"golang.org/x/sync/errgroup"
)

type catalogServiceImpl struct {
	repo CashFlowRepository
}

// NewCatalogService creates the lookup service for cascading filters.
func NewCatalogService(repo CashFlowRepository) CatalogService {
	return &catalogServiceImpl{repo: repo}
}

func (s *catalogServiceImpl) ListInstitutions(ctx context.Context) []models.InstitutionInfo {
	out, err := s.repo.ListInstitutions(ctx)
	if err != nil {
		logger.ErrorFromContext(ctx, "Error listing institutions", "error", err)
		return []models.InstitutionInfo{}
	}
	if out == nil {
		out = []models.InstitutionInfo{}
	}
	return out
}

func (s *catalogServiceImpl) ListFunds(ctx context.Context, institution string) []models.FundInfo {
	out, err := s.repo.ListFunds(ctx, institution)
	if err != nil {
		logger.ErrorFromContext(ctx, "Error listing funds", "error", err, "institution", institution)
		return []models.FundInfo{}
	}
	if out == nil {
		out = []models.FundInfo{}
	}
	return out
}

func (s *catalogServiceImpl) ListIssuances(ctx context.Context, institution, fund string) []models.IssuanceInfo {
	out, err := s.repo.ListIssuances(ctx, institution, fund)
	if err != nil {
		logger.ErrorFromContext(ctx, "Error listing issuances", "error", err, "institution", institution, "fund", fund)
		return []models.IssuanceInfo{}
	}
	if out == nil {
		out = []models.IssuanceInfo{}
	}
	return out
}

func (s *catalogServiceImpl) ListCounterparties(ctx context.Context, institution string) []models.CounterpartyInfo {
	out, err := s.repo.ListCounterparties(ctx, institution)
	if err != nil {
		logger.ErrorFromContext(ctx, "Error listing counterparties", "error", err, "institution", institution)
		return []models.CounterpartyInfo{}
	}
	if out == nil {
		out = []models.CounterpartyInfo{}
	}
	return out
}

// FilterOptions loads the institution, fund and issuance levels concurrently.
// Funds are only listed once a concrete institution is chosen and issuances
// once a concrete fund is. A level that fails to load stays empty without
// blanking the others.
func (s *catalogServiceImpl) FilterOptions(ctx context.Context, institution, fund string) models.FilterOptions {
	var (
		mu   sync.Mutex
		opts = models.FilterOptions{
			Institutions: []models.InstitutionInfo{},
			Funds:        []models.FundInfo{},
			Issuances:    []models.IssuanceInfo{},
		}
	)

	// A plain group: one failing level must not cancel its siblings.
	var g errgroup.Group

	g.Go(func() error {
		institutions, err := s.repo.ListInstitutions(ctx)
		if err != nil {
			return fmt.Errorf("institutions: %w", err)
		}
		mu.Lock()
		if institutions != nil {
			opts.Institutions = institutions
		}
		mu.Unlock()
		return nil
	})

	if !query.IsAll(institution) {
		g.Go(func() error {
			funds, err := s.repo.ListFunds(ctx, institution)
			if err != nil {
				return fmt.Errorf("funds: %w", err)
			}
			mu.Lock()
			if funds != nil {
				opts.Funds = funds
			}
			mu.Unlock()
			return nil
		})
	}

	if !query.IsAll(institution) && !query.IsAll(fund) {
		g.Go(func() error {
			issuances, err := s.repo.ListIssuances(ctx, institution, fund)
			if err != nil {
				return fmt.Errorf("issuances: %w", err)
			}
			mu.Lock()
			if issuances != nil {
				opts.Issuances = issuances
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.ErrorFromContext(ctx, "Error loading filter options", "error", err, "institution", institution, "fund", fund)
	}
	return opts
}
