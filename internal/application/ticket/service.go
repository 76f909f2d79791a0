// Package ticket implements the cache-aware ticket service: every
// persistence operation behind the startup readiness gate, with read-through
// caching on single-ticket and full-list reads and cache maintenance on
// writes. The cache is never the source of truth; any cache failure is
// logged and the backing store answers instead.
package ticket

import (
	"context"
	"time"

	"ticketd/internal/application/ticket/dto"
	domain "ticketd/internal/domain/ticket"
	vo "ticketd/internal/domain/ticket/valueobjects"
	"ticketd/internal/shared/errors"
	"ticketd/internal/shared/logger"
	"ticketd/internal/shared/readiness"
)

type CreateTicketCommand struct {
	Title       string
	Description string
	Assignee    string
	Status      string
	Priority    string
	Attachments []domain.AttachmentPayload
}

// UpdateTicketCommand carries a partial update; empty fields leave the
// current value unchanged. Attachment payloads are appended, never replaced.
type UpdateTicketCommand struct {
	Title       string
	Description string
	Assignee    string
	Status      string
	Priority    string
	Attachments []domain.AttachmentPayload
}

// FilterQuery selects tickets by the fields that are set.
type FilterQuery struct {
	Status   string
	Priority string
	Assignee string
}

func (q FilterQuery) toFilter() (domain.Filter, error) {
	var f domain.Filter
	if q.Status != "" {
		status, err := vo.NewStatus(q.Status)
		if err != nil {
			return f, errors.NewValidationError(err.Error())
		}
		f.Status = &status
	}
	if q.Priority != "" {
		priority, err := vo.NewPriority(q.Priority)
		if err != nil {
			return f, errors.NewValidationError(err.Error())
		}
		f.Priority = &priority
	}
	if q.Assignee != "" {
		assignee := q.Assignee
		f.Assignee = &assignee
	}
	return f, nil
}

// Service wraps the repository with the readiness gate and cache policy.
// The readiness flag is injected state flipped by the bootstrap routine;
// the service itself has no lifecycle.
type Service struct {
	repo   domain.Repository
	cache  Cache
	state  *readiness.State
	logger logger.Interface
}

func NewService(repo domain.Repository, cache Cache, state *readiness.State, log logger.Interface) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		state:  state,
		logger: log,
	}
}

// gate rejects operations until the startup bootstrap has marked the backing
// store ready. The check is advisory: early callers fail immediately rather
// than queueing.
func (s *Service) gate() error {
	if !s.state.Ready() {
		return errors.NewUnavailableError("service is starting up")
	}
	return nil
}

// Ready reports whether the startup gate is open.
func (s *Service) Ready() bool {
	return s.state.Ready()
}

// Healthy probes backing-store connectivity. It reports false only when the
// probe itself fails.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}

func (s *Service) CreateTicket(ctx context.Context, cmd CreateTicketCommand) (*dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	status, err := vo.NewStatus(cmd.Status)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	priority, err := vo.NewPriority(cmd.Priority)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	t, err := domain.NewTicket(cmd.Title, cmd.Description, cmd.Assignee, status, priority)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := s.repo.Create(ctx, t, cmd.Attachments); err != nil {
		return nil, err
	}

	created := dto.FromDomain(t)

	// Append to an existing cached list without a database round trip. If no
	// list is cached, the next full read populates it fresh.
	if cached, ok, err := s.cache.GetAll(ctx); err != nil {
		s.logger.Warnw("cache read failed after create", "error", err)
	} else if ok {
		cached = append(cached, created)
		if err := s.cache.SetAll(ctx, cached); err != nil {
			s.logger.Warnw("cache write failed after create", "error", err)
		}
	}

	s.logger.Infow("ticket created", "ticket_id", created.ID)
	return &created, nil
}

// GetTicketByID serves from the cache when possible and populates it on a
// miss. Two concurrent misses may both populate; last writer wins.
func (s *Service) GetTicketByID(ctx context.Context, id uint, includeAttachments bool) (*dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, errors.NewValidationError("invalid ticket id")
	}

	if cached, ok, err := s.cache.GetTicket(ctx, id); err != nil {
		s.logger.Warnw("cache read failed", "ticket_id", id, "error", err)
	} else if ok {
		return cached, nil
	}

	t, err := s.repo.GetByID(ctx, id, includeAttachments)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewNotFoundError("ticket not found")
	}

	result := dto.FromDomain(t)
	if err := s.cache.SetTicket(ctx, result); err != nil {
		s.logger.Warnw("cache write failed", "ticket_id", id, "error", err)
	}

	return &result, nil
}

func (s *Service) GetTickets(ctx context.Context, includeAttachments bool) ([]dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	if cached, ok, err := s.cache.GetAll(ctx); err != nil {
		s.logger.Warnw("cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	tickets, err := s.repo.List(ctx, includeAttachments)
	if err != nil {
		return nil, err
	}

	result := dto.FromDomainList(tickets)
	if err := s.cache.SetAll(ctx, result); err != nil {
		s.logger.Warnw("cache write failed", "error", err)
	}

	return result, nil
}

func (s *Service) UpdateTicket(ctx context.Context, id uint, cmd UpdateTicketCommand) (*dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	patch := domain.Patch{
		Title:       cmd.Title,
		Description: cmd.Description,
		Assignee:    cmd.Assignee,
		Status:      cmd.Status,
		Priority:    cmd.Priority,
	}

	t, err := s.repo.Update(ctx, id, patch, cmd.Attachments)
	if err != nil {
		return nil, err
	}

	updated := dto.FromDomain(t)

	// Evict the per-ticket entry; the next read fetches fresh.
	if err := s.cache.RemoveTicket(ctx, id); err != nil {
		s.logger.Warnw("cache evict failed after update", "ticket_id", id, "error", err)
	}
	if cached, ok, err := s.cache.GetAll(ctx); err != nil {
		s.logger.Warnw("cache read failed after update", "error", err)
	} else if ok {
		for i := range cached {
			if cached[i].ID == id {
				cached[i] = updated
				break
			}
		}
		if err := s.cache.SetAll(ctx, cached); err != nil {
			s.logger.Warnw("cache write failed after update", "error", err)
		}
	}

	s.logger.Infow("ticket updated", "ticket_id", id)
	return &updated, nil
}

func (s *Service) DeleteTicket(ctx context.Context, id uint) (*dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	t, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted := dto.FromDomain(t)

	if err := s.cache.RemoveTicket(ctx, id); err != nil {
		s.logger.Warnw("cache evict failed after delete", "ticket_id", id, "error", err)
	}
	if cached, ok, err := s.cache.GetAll(ctx); err != nil {
		s.logger.Warnw("cache read failed after delete", "error", err)
	} else if ok {
		remaining := make([]dto.TicketDTO, 0, len(cached))
		for _, entry := range cached {
			if entry.ID != id {
				remaining = append(remaining, entry)
			}
		}
		if err := s.cache.SetAll(ctx, remaining); err != nil {
			s.logger.Warnw("cache write failed after delete", "error", err)
		}
	} else {
		// No patchable list entry; make sure no stale aggregate survives.
		if err := s.cache.RemoveAll(ctx); err != nil {
			s.logger.Warnw("cache evict failed after delete", "error", err)
		}
	}

	s.logger.Infow("ticket deleted", "ticket_id", id)
	return &deleted, nil
}

// UpdateTicketStatus delegates directly to the repository; status writes do
// not maintain the cache.
func (s *Service) UpdateTicketStatus(ctx context.Context, id uint, status string) (*dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	parsed, err := vo.NewStatus(status)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	t, err := s.repo.UpdateStatus(ctx, id, parsed)
	if err != nil {
		return nil, err
	}

	result := dto.FromDomain(t)
	return &result, nil
}

// DownloadTicketAttachment returns the attachment metadata together with the
// stored file bytes.
func (s *Service) DownloadTicketAttachment(ctx context.Context, attachmentID uint) (*dto.AttachmentDTO, []byte, error) {
	if err := s.gate(); err != nil {
		return nil, nil, err
	}

	a, err := s.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, errors.NewNotFoundError("attachment not found")
	}

	data, err := s.repo.ReadAttachment(ctx, a)
	if err != nil {
		return nil, nil, err
	}

	result := dto.AttachmentFromDomain(a)
	return &result, data, nil
}

func (s *Service) RemoveTicketAttachment(ctx context.Context, attachmentID uint) error {
	if err := s.gate(); err != nil {
		return err
	}

	a, err := s.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if a == nil {
		return errors.NewNotFoundError("attachment not found")
	}

	return s.repo.RemoveAttachment(ctx, a)
}

// CountTickets is always computed live; counts are never cached.
func (s *Service) CountTickets(ctx context.Context) (int64, error) {
	if err := s.gate(); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx)
}

func (s *Service) CountTicketsMatching(ctx context.Context, q FilterQuery) (int64, error) {
	if err := s.gate(); err != nil {
		return 0, err
	}

	f, err := q.toFilter()
	if err != nil {
		return 0, err
	}
	return s.repo.CountMatching(ctx, f)
}

func (s *Service) FindTicketsMatching(ctx context.Context, q FilterQuery, includeAttachments bool) ([]dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	f, err := q.toFilter()
	if err != nil {
		return nil, err
	}

	tickets, err := s.repo.FindMatching(ctx, f, includeAttachments)
	if err != nil {
		return nil, err
	}
	return dto.FromDomainList(tickets), nil
}

func (s *Service) FindTicketsByDateRange(ctx context.Context, start, end time.Time) ([]dto.TicketDTO, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, errors.NewValidationError("end of date range precedes start")
	}

	tickets, err := s.repo.FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return dto.FromDomainList(tickets), nil
}
