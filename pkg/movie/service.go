package movie

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/repository/document"
)

// Page is the body of a list response.
type Page struct {
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
	Movies []Movie `json:"movies"`
}

// Service implements the movie operations over a Repository.
type Service struct {
	repo   Repository
	policy QueryPolicy
	log    logger.Logger
}

// NewService wires a service to its store.
func NewService(repo Repository, policy QueryPolicy, log logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movie repository is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, policy: policy, log: log}, nil
}

// List returns one page of the movies matching the query string, with the
// total number of matches.
func (s *Service) List(ctx context.Context, values url.Values) (Page, error) {
	opts, err := s.policy.ListQuery(values)
	if err != nil {
		return Page{}, err
	}

	total, err := s.repo.Count(ctx, opts.Filter)
	if err != nil {
		return Page{}, storeErr("count movies", err)
	}
	movies, err := s.repo.FindAll(ctx, opts)
	if err != nil {
		return Page{}, storeErr("list movies", err)
	}

	return Page{
		Total:  total,
		Page:   opts.Pagination.Page,
		Limit:  opts.Pagination.Limit,
		Movies: nonNil(movies),
	}, nil
}

// Search returns every movie matching the genre, releaseYear and rating
// parameters, in store order.
func (s *Service) Search(ctx context.Context, values url.Values) ([]Movie, error) {
	filter, err := s.policy.SearchFilter(values)
	if err != nil {
		return nil, err
	}
	movies, err := s.repo.FindAll(ctx, document.QueryOptions{Filter: filter})
	if err != nil {
		return nil, storeErr("search movies", err)
	}
	return nonNil(movies), nil
}

// Get returns the movie with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Movie, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get movie", err)
	}
	return m, nil
}

// Create validates payload and stores it as a new movie.
func (s *Service) Create(ctx context.Context, payload map[string]any) (*Movie, error) {
	m, err := ParseMovie(payload)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &m); err != nil {
		return nil, storeErr("create movie", err)
	}
	s.log.WithContext(ctx).Info("movie created", "id", m.ID, "title", m.Title)
	return &m, nil
}

// Update merges payload onto the stored movie, validates the result and
// replaces the stored document with it.
func (s *Service) Update(ctx context.Context, id string, payload map[string]any) (*Movie, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get movie", err)
	}

	m, err := Merge(*existing, payload)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &m); err != nil {
		return nil, storeErr("update movie", err)
	}
	s.log.WithContext(ctx).Info("movie updated", "id", m.ID)
	return &m, nil
}

// Delete removes the movie and returns it.
func (s *Service) Delete(ctx context.Context, id string) (*Movie, error) {
	m, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, storeErr("delete movie", err)
	}
	s.log.WithContext(ctx).Info("movie deleted", "id", id)
	return m, nil
}

func nonNil(movies []Movie) []Movie {
	if movies == nil {
		return []Movie{}
	}
	return movies
}
