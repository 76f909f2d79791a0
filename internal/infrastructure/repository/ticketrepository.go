package repository

import (
	"context"
	"errors"
	"os"
	"time"

	"gorm.io/gorm"

	"ticketd/internal/domain/ticket"
	vo "ticketd/internal/domain/ticket/valueobjects"
	"ticketd/internal/infrastructure/persistence/mappers"
	"ticketd/internal/infrastructure/persistence/models"
	"ticketd/internal/infrastructure/storage"
	db "ticketd/internal/shared/db"
	apperrors "ticketd/internal/shared/errors"
	"ticketd/internal/shared/logger"
)

// TicketRepository implements the engine-agnostic persistence contract over
// the selected engine. Multi-step writes (load + ticket + attachments) run
// through the transaction manager so the reads join the same transaction via
// the context. Attachment payload bytes are written to storage before the
// enclosing transaction commits; a failed commit rolls back all row changes
// but leaves the already-written files behind. That is an accepted
// limitation, not something this layer papers over.
type TicketRepository struct {
	db     *gorm.DB
	txMgr  *db.TransactionManager
	store  *storage.LocalStore
	mapper mappers.TicketMapper
	logger logger.Interface
}

func NewTicketRepository(gdb *gorm.DB, store *storage.LocalStore) *TicketRepository {
	return &TicketRepository{
		db:     gdb,
		txMgr:  db.NewTransactionManager(gdb),
		store:  store,
		mapper: mappers.NewTicketMapper(),
		logger: logger.NewLoggerWithSlog(logger.WithComponent("ticket_repository")),
	}
}

func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket, payloads []ticket.AttachmentPayload) error {
	if t == nil {
		return apperrors.NewValidationError("ticket draft is required")
	}

	model := r.mapper.ToModel(t)
	var attachmentModels []*models.AttachmentModel

	err := r.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		tx := db.GetTxFromContext(txCtx, r.db)
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		for _, payload := range payloads {
			path, err := r.store.Save(payload.Name, payload.Data)
			if err != nil {
				return err
			}
			am := &models.AttachmentModel{
				TicketID:    model.ID,
				Name:        payload.Name,
				ContentType: payload.ContentType,
				Size:        int64(len(payload.Data)),
				URL:         path,
			}
			if err := tx.Create(am).Error; err != nil {
				return err
			}
			attachmentModels = append(attachmentModels, am)
		}

		return nil
	})
	if err != nil {
		return apperrors.NewPersistenceError("failed to create ticket", err)
	}

	if err := t.SetID(model.ID); err != nil {
		return err
	}
	for _, am := range attachmentModels {
		a, err := r.mapper.AttachmentToDomain(am)
		if err != nil {
			return err
		}
		if err := t.AddAttachment(a); err != nil {
			return err
		}
	}

	return nil
}

// Delete removes the ticket, its attachment rows, and their stored files,
// returning the pre-deletion snapshot. The snapshot load and the row deletes
// run in the same transaction; file deletion happens after commit and is
// best-effort, a missing file is not an error.
func (r *TicketRepository) Delete(ctx context.Context, id uint) (*ticket.Ticket, error) {
	if id == 0 {
		return nil, apperrors.NewValidationError("invalid ticket id")
	}

	var snapshot *ticket.Ticket
	err := r.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := r.GetByID(txCtx, id, true)
		if err != nil {
			return err
		}
		if loaded == nil {
			return apperrors.NewNotFoundError("ticket not found")
		}
		snapshot = loaded

		tx := db.GetTxFromContext(txCtx, r.db)
		if err := tx.Where("ticket_id = ?", id).Delete(&models.AttachmentModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TicketModel{}, id).Error
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewPersistenceError("failed to delete ticket", err)
	}

	for _, a := range snapshot.Attachments() {
		if err := r.store.Delete(a.URL()); err != nil {
			r.logger.Warnw("failed to delete attachment file", "path", a.URL(), "error", err)
		}
	}

	return snapshot, nil
}

// GetByID returns (nil, nil) when no row matches; absence is not an error at
// this level.
func (r *TicketRepository) GetByID(ctx context.Context, id uint, includeAttachments bool) (*ticket.Ticket, error) {
	if id == 0 {
		return nil, apperrors.NewValidationError("invalid ticket id")
	}

	var model models.TicketModel
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError("failed to find ticket", err)
	}

	t, err := r.mapper.ToDomain(&model)
	if err != nil {
		return nil, err
	}

	if includeAttachments {
		if err := r.loadAttachments(ctx, []*ticket.Ticket{t}); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (r *TicketRepository) List(ctx context.Context, includeAttachments bool) ([]*ticket.Ticket, error) {
	var ticketModels []models.TicketModel
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Order("id ASC").Find(&ticketModels).Error; err != nil {
		return nil, apperrors.NewPersistenceError("failed to list tickets", err)
	}

	tickets := make([]*ticket.Ticket, len(ticketModels))
	for i := range ticketModels {
		t, err := r.mapper.ToDomain(&ticketModels[i])
		if err != nil {
			return nil, err
		}
		tickets[i] = t
	}

	if includeAttachments {
		if err := r.loadAttachments(ctx, tickets); err != nil {
			return nil, err
		}
	}

	return tickets, nil
}

// Update applies the non-empty fields of the patch, always resets the
// promise date, and appends any newly supplied attachment payloads. Existing
// attachments are kept; removal is a separate call.
func (r *TicketRepository) Update(ctx context.Context, id uint, patch ticket.Patch, payloads []ticket.AttachmentPayload) (*ticket.Ticket, error) {
	if id == 0 {
		return nil, apperrors.NewValidationError("invalid ticket id")
	}

	var (
		t                *ticket.Ticket
		attachmentModels []*models.AttachmentModel
	)
	err := r.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := r.GetByID(txCtx, id, true)
		if err != nil {
			return err
		}
		if loaded == nil {
			return apperrors.NewNotFoundError("ticket not found")
		}

		if err := loaded.ApplyPatch(patch); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		t = loaded

		tx := db.GetTxFromContext(txCtx, r.db)
		if err := tx.Model(&models.TicketModel{}).Where("id = ?", id).Updates(r.mapper.ToModel(t)).Error; err != nil {
			return err
		}

		for _, payload := range payloads {
			path, err := r.store.Save(payload.Name, payload.Data)
			if err != nil {
				return err
			}
			am := &models.AttachmentModel{
				TicketID:    id,
				Name:        payload.Name,
				ContentType: payload.ContentType,
				Size:        int64(len(payload.Data)),
				URL:         path,
			}
			if err := tx.Create(am).Error; err != nil {
				return err
			}
			attachmentModels = append(attachmentModels, am)
		}

		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewPersistenceError("failed to update ticket", err)
	}

	for _, am := range attachmentModels {
		a, err := r.mapper.AttachmentToDomain(am)
		if err != nil {
			return nil, err
		}
		if err := t.AddAttachment(a); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (r *TicketRepository) UpdateStatus(ctx context.Context, id uint, status vo.Status) (*ticket.Ticket, error) {
	if id == 0 {
		return nil, apperrors.NewValidationError("invalid ticket id")
	}

	t, err := r.GetByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperrors.NewNotFoundError("ticket not found")
	}

	if err := t.ChangeStatus(status); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	err = r.db.WithContext(ctx).
		Model(&models.TicketModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       t.Status().String(),
			"promise_date": t.PromiseDate().UnixMilli(),
		}).Error
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to update ticket status", err)
	}

	return t, nil
}

// GetAttachment returns (nil, nil) when no row matches.
func (r *TicketRepository) GetAttachment(ctx context.Context, attachmentID uint) (*ticket.Attachment, error) {
	if attachmentID == 0 {
		return nil, apperrors.NewValidationError("invalid attachment id")
	}

	var model models.AttachmentModel
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.First(&model, attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError("failed to find attachment", err)
	}

	return r.mapper.AttachmentToDomain(&model)
}

// ReadAttachment returns the stored bytes for the attachment's file.
func (r *TicketRepository) ReadAttachment(ctx context.Context, a *ticket.Attachment) ([]byte, error) {
	if a == nil {
		return nil, apperrors.NewValidationError("attachment is required")
	}

	data, err := r.store.Read(a.URL())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("attachment file not found")
		}
		return nil, apperrors.NewPersistenceError("failed to read attachment file", err)
	}
	return data, nil
}

// RemoveAttachment deletes the row and, best-effort, the stored file.
func (r *TicketRepository) RemoveAttachment(ctx context.Context, a *ticket.Attachment) error {
	if a == nil {
		return apperrors.NewValidationError("attachment is required")
	}

	result := r.db.WithContext(ctx).Delete(&models.AttachmentModel{}, a.ID())
	if result.Error != nil {
		return apperrors.NewPersistenceError("failed to remove attachment", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("attachment not found")
	}

	if err := r.store.Delete(a.URL()); err != nil {
		r.logger.Warnw("failed to delete attachment file", "path", a.URL(), "error", err)
	}

	return nil
}

func (r *TicketRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Model(&models.TicketModel{}).Count(&total).Error; err != nil {
		return 0, apperrors.NewPersistenceError("failed to count tickets", err)
	}
	return total, nil
}

// CountMatching translates the filter to WHERE clauses so the count runs
// server-side.
func (r *TicketRepository) CountMatching(ctx context.Context, f ticket.Filter) (int64, error) {
	tx := db.GetTxFromContext(ctx, r.db)
	query := tx.Model(&models.TicketModel{})

	if f.Status != nil {
		query = query.Where("status = ?", f.Status.String())
	}
	if f.Priority != nil {
		query = query.Where("priority = ?", f.Priority.String())
	}
	if f.Assignee != nil {
		query = query.Where("assignee = ?", *f.Assignee)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, apperrors.NewPersistenceError("failed to count tickets", err)
	}
	return total, nil
}

// FindMatching loads the full set and filters in process. This trades
// scalability for generality over arbitrary predicates; counts use the
// server-side variant instead.
func (r *TicketRepository) FindMatching(ctx context.Context, f ticket.Filter, includeAttachments bool) ([]*ticket.Ticket, error) {
	all, err := r.List(ctx, includeAttachments)
	if err != nil {
		return nil, err
	}

	matched := make([]*ticket.Ticket, 0, len(all))
	for _, t := range all {
		if f.Matches(t) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (r *TicketRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]*ticket.Ticket, error) {
	var ticketModels []models.TicketModel
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.
		Where("promise_date BETWEEN ? AND ?", start.UnixMilli(), end.UnixMilli()).
		Order("promise_date ASC").
		Find(&ticketModels).Error; err != nil {
		return nil, apperrors.NewPersistenceError("failed to find tickets by date range", err)
	}

	tickets := make([]*ticket.Ticket, len(ticketModels))
	for i := range ticketModels {
		t, err := r.mapper.ToDomain(&ticketModels[i])
		if err != nil {
			return nil, err
		}
		tickets[i] = t
	}

	return tickets, nil
}

// Ping probes connectivity. It returns an error only when the probe itself
// fails.
func (r *TicketRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return apperrors.NewPersistenceError("failed to get underlying sql.DB", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.NewPersistenceError("database unreachable", err)
	}
	return nil
}

// loadAttachments queries attachment rows for the given tickets in a single
// query and adds them to their owners.
func (r *TicketRepository) loadAttachments(ctx context.Context, tickets []*ticket.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	ids := make([]uint, len(tickets))
	byID := make(map[uint]*ticket.Ticket, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID()
		byID[t.ID()] = t
	}

	var attachmentModels []models.AttachmentModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.
		Where("ticket_id IN ?", ids).
		Order("id ASC").
		Find(&attachmentModels).Error; err != nil {
		return apperrors.NewPersistenceError("failed to load attachments", err)
	}

	for i := range attachmentModels {
		a, err := r.mapper.AttachmentToDomain(&attachmentModels[i])
		if err != nil {
			return err
		}
		if owner, ok := byID[a.TicketID()]; ok {
			if err := owner.AddAttachment(a); err != nil {
				return err
			}
		}
	}

	return nil
}
