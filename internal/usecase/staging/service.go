package staging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
	domstaging "github.com/kailas-cloud/indexstager/internal/domain/staging"
)

// Service opens staging sessions against one index service.
type Service struct {
	repo   Repository
	retry  RetryPolicy
	logger *zap.Logger
	clock  domstaging.Clock
	random domstaging.RandomSource
}

// Option configures a Service.
type Option func(*Service)

// WithRetryPolicy sets the copy poll policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for temp index stamps.
func WithClock(c domstaging.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRandom overrides the temp index suffix source.
func WithRandom(r domstaging.RandomSource) Option {
	return func(s *Service) { s.random = r }
}

// New creates a staging service.
func New(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: repository is required", domain.ErrInvalidConfig)
	}
	s := &Service{
		repo:   repo,
		retry:  DefaultRetryPolicy(),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.retry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: retry policy: %w", domain.ErrInvalidConfig, err)
	}
	return s, nil
}

// NewSession starts a migration of logical with a freshly derived temp index name.
func (s *Service) NewSession(logical string) (*Session, error) {
	names, err := domstaging.NewNames(logical, s.clock, s.random)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return s.session(names), nil
}

// ResumeSession continues a migration whose temp index was named elsewhere.
func (s *Service) ResumeSession(logical, temp string) (*Session, error) {
	names, err := domstaging.NamesWithTemp(logical, temp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return s.session(names), nil
}

// AttachSession opens a session on logical's current stage to promote or clean
// it up. It owns no temp index, so AliasStageToTemp fails.
func (s *Service) AttachSession(logical string) (*Session, error) {
	names, err := domstaging.NamesFor(logical)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return s.session(names), nil
}

func (s *Service) session(names domstaging.Names) *Session {
	return &Session{
		repo:   s.repo,
		retry:  s.retry,
		names:  names,
		logger: s.logger.With(zap.String("logical_name", names.Logical())),
	}
}

// Resolve reports what name currently points at. exists is false when nothing
// resolves; an unaliased concrete index exists with empty bindings.
func (s *Service) Resolve(ctx context.Context, name string) (alias.Bindings, bool, error) {
	if err := domstaging.ValidateLogicalName(name); err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrInvalidName, err)
	}
	b, err := s.repo.Bindings(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return alias.Bindings{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", name, err)
	}
	return b, true, nil
}
