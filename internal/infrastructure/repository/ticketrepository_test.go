package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ticketd/internal/domain/ticket"
	vo "ticketd/internal/domain/ticket/valueobjects"
	"ticketd/internal/infrastructure/persistence/models"
	"ticketd/internal/infrastructure/storage"
	shareddb "ticketd/internal/shared/db"
	apperrors "ticketd/internal/shared/errors"
)

func setupRepo(t *testing.T) (*TicketRepository, *storage.LocalStore) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.TicketModel{}, &models.AttachmentModel{}))

	store := storage.NewLocalStore(t.TempDir())
	return NewTicketRepository(db, store), store
}

func newDraft(t *testing.T, title string) *ticket.Ticket {
	tk, err := ticket.NewTicket(title, "description", "alice", vo.StatusOpen, vo.PriorityMedium)
	require.NoError(t, err)
	return tk
}

func TestTicketRepository_Create(t *testing.T) {
	repo, store := setupRepo(t)
	ctx := context.Background()

	t.Run("assigns id on create", func(t *testing.T) {
		tk := newDraft(t, "First")
		require.NoError(t, repo.Create(ctx, tk, nil))
		assert.NotZero(t, tk.ID())
	})

	t.Run("persists attachment rows and files", func(t *testing.T) {
		tk := newDraft(t, "With attachments")
		payloads := []ticket.AttachmentPayload{
			{Name: "log.txt", ContentType: "text/plain", Data: []byte("hello")},
			{Name: "dump.bin", ContentType: "application/octet-stream", Data: []byte{0x01, 0x02}},
		}
		require.NoError(t, repo.Create(ctx, tk, payloads))

		attachments := tk.Attachments()
		require.Len(t, attachments, 2)
		assert.Equal(t, tk.ID(), attachments[0].TicketID())
		assert.Equal(t, int64(5), attachments[0].Size())

		for _, a := range attachments {
			assert.True(t, store.Exists(a.URL()), "payload bytes must be on disk")
		}

		found, err := repo.GetByID(ctx, tk.ID(), true)
		require.NoError(t, err)
		require.Len(t, found.Attachments(), 2)
	})

	t.Run("nil draft is rejected", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, nil, nil))
	})
}

func TestTicketRepository_GetByID(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	tk := newDraft(t, "Lookup")
	require.NoError(t, repo.Create(ctx, tk, nil))

	t.Run("round-trips all fields", func(t *testing.T) {
		found, err := repo.GetByID(ctx, tk.ID(), false)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Lookup", found.Title())
		assert.Equal(t, vo.StatusOpen, found.Status())
		assert.Equal(t, vo.PriorityMedium, found.Priority())
		assert.Equal(t, tk.PromiseDate().UnixMilli(), found.PromiseDate().UnixMilli())
	})

	t.Run("absent row returns nil without error", func(t *testing.T) {
		found, err := repo.GetByID(ctx, 9999, false)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("zero id is a validation error", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 0, false)
		assert.True(t, apperrors.IsValidationError(err))
	})
}

func TestTicketRepository_Update(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	t.Run("partial patch preserves untouched fields and advances promise date", func(t *testing.T) {
		tk := newDraft(t, "Before")
		require.NoError(t, repo.Create(ctx, tk, nil))
		created := tk.PromiseDate()

		time.Sleep(5 * time.Millisecond)

		updated, err := repo.Update(ctx, tk.ID(), ticket.Patch{Title: "After"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "After", updated.Title())
		assert.Equal(t, "description", updated.Description())
		assert.Equal(t, "alice", updated.Assignee())
		assert.True(t, updated.PromiseDate().After(created))

		found, err := repo.GetByID(ctx, tk.ID(), false)
		require.NoError(t, err)
		assert.Equal(t, "After", found.Title())
		assert.Equal(t, "description", found.Description())
	})

	t.Run("appends new attachment payloads", func(t *testing.T) {
		tk := newDraft(t, "Growing")
		require.NoError(t, repo.Create(ctx, tk, []ticket.AttachmentPayload{
			{Name: "one.txt", Data: []byte("1")},
		}))

		updated, err := repo.Update(ctx, tk.ID(), ticket.Patch{}, []ticket.AttachmentPayload{
			{Name: "two.txt", Data: []byte("22")},
		})
		require.NoError(t, err)
		assert.Len(t, updated.Attachments(), 2)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.Update(ctx, 9999, ticket.Patch{Title: "x"}, nil)
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("invalid patch status is a validation error", func(t *testing.T) {
		tk := newDraft(t, "Patchy")
		require.NoError(t, repo.Create(ctx, tk, nil))

		_, err := repo.Update(ctx, tk.ID(), ticket.Patch{Status: "Nope"}, nil)
		assert.True(t, apperrors.IsValidationError(err))
	})
}

func TestTicketRepository_UpdateStatus(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	tk := newDraft(t, "Status")
	require.NoError(t, repo.Create(ctx, tk, nil))

	updated, err := repo.UpdateStatus(ctx, tk.ID(), vo.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, vo.StatusResolved, updated.Status())

	found, err := repo.GetByID(ctx, tk.ID(), false)
	require.NoError(t, err)
	assert.Equal(t, vo.StatusResolved, found.Status())

	_, err = repo.UpdateStatus(ctx, 9999, vo.StatusClosed)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestTicketRepository_Delete(t *testing.T) {
	repo, store := setupRepo(t)
	ctx := context.Background()

	t.Run("removes rows and stored files", func(t *testing.T) {
		tk := newDraft(t, "Doomed")
		require.NoError(t, repo.Create(ctx, tk, []ticket.AttachmentPayload{
			{Name: "gone.txt", Data: []byte("bye")},
		}))
		path := tk.Attachments()[0].URL()
		require.True(t, store.Exists(path))

		snapshot, err := repo.Delete(ctx, tk.ID())
		require.NoError(t, err)
		assert.Equal(t, "Doomed", snapshot.Title())
		assert.Len(t, snapshot.Attachments(), 1)

		found, err := repo.GetByID(ctx, tk.ID(), false)
		require.NoError(t, err)
		assert.Nil(t, found)
		assert.False(t, store.Exists(path))
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.Delete(ctx, 9999)
		assert.True(t, apperrors.IsNotFoundError(err))
	})
}

func TestTicketRepository_Attachments(t *testing.T) {
	repo, store := setupRepo(t)
	ctx := context.Background()

	tk := newDraft(t, "Owner")
	require.NoError(t, repo.Create(ctx, tk, []ticket.AttachmentPayload{
		{Name: "keep.txt", ContentType: "text/plain", Data: []byte("data")},
	}))
	attachmentID := tk.Attachments()[0].ID()

	t.Run("get returns the row", func(t *testing.T) {
		a, err := repo.GetAttachment(ctx, attachmentID)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "keep.txt", a.Name())
		assert.Equal(t, tk.ID(), a.TicketID())
	})

	t.Run("absent row returns nil without error", func(t *testing.T) {
		a, err := repo.GetAttachment(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("read returns the stored bytes", func(t *testing.T) {
		a, err := repo.GetAttachment(ctx, attachmentID)
		require.NoError(t, err)

		data, err := repo.ReadAttachment(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), data)
	})

	t.Run("read of a missing file is not found", func(t *testing.T) {
		ghost, err := ticket.ReconstructAttachment(77, tk.ID(), "ghost.txt", "text/plain", 1,
			filepath.Join(t.TempDir(), "never-written.txt"))
		require.NoError(t, err)

		_, err = repo.ReadAttachment(ctx, ghost)
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("remove deletes row and file", func(t *testing.T) {
		a, err := repo.GetAttachment(ctx, attachmentID)
		require.NoError(t, err)
		path := a.URL()
		require.True(t, store.Exists(path))

		require.NoError(t, repo.RemoveAttachment(ctx, a))
		assert.False(t, store.Exists(path))

		gone, err := repo.GetAttachment(ctx, attachmentID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		assert.True(t, apperrors.IsNotFoundError(repo.RemoveAttachment(ctx, a)))
	})
}

func TestTicketRepository_Queries(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	open, err := ticket.NewTicket("Open high", "d", "alice", vo.StatusOpen, vo.PriorityHigh)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, open, nil))

	closed, err := ticket.NewTicket("Closed low", "d", "bob", vo.StatusClosed, vo.PriorityLow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, closed, nil))

	t.Run("count", func(t *testing.T) {
		total, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("count matching filters server-side", func(t *testing.T) {
		status := vo.StatusOpen
		total, err := repo.CountMatching(ctx, ticket.Filter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		assignee := "bob"
		total, err = repo.CountMatching(ctx, ticket.Filter{Assignee: &assignee})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("find matching applies the predicate", func(t *testing.T) {
		priority := vo.PriorityHigh
		matched, err := repo.FindMatching(ctx, ticket.Filter{Priority: &priority}, false)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, "Open high", matched[0].Title())
	})

	t.Run("find by date range brackets promise dates", func(t *testing.T) {
		now := time.Now().UTC()
		found, err := repo.FindByDateRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = repo.FindByDateRange(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("list orders by id", func(t *testing.T) {
		all, err := repo.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Less(t, all[0].ID(), all[1].ID())
	})
}

func TestTicketRepository_Ping(t *testing.T) {
	repo, _ := setupRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestTicketRepository_AmbientTransactionRollback(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.TicketModel{}, &models.AttachmentModel{}))
	repo := NewTicketRepository(gdb, storage.NewLocalStore(t.TempDir()))

	ctx := context.Background()
	tk := newDraft(t, "Kept")
	require.NoError(t, repo.Create(ctx, tk, nil))

	txMgr := shareddb.NewTransactionManager(gdb)
	errAbort := errors.New("abort")

	err = txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		snapshot, err := repo.Delete(txCtx, tk.ID())
		require.NoError(t, err)
		require.Equal(t, "Kept", snapshot.Title())

		// Inside the enclosing transaction the delete is already visible.
		inside, err := repo.GetByID(txCtx, tk.ID(), false)
		require.NoError(t, err)
		require.Nil(t, inside)

		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	// The enclosing rollback undid the delete.
	restored, err := repo.GetByID(ctx, tk.ID(), false)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "Kept", restored.Title())
}

func TestLocalStoreFilesSurviveRollback(t *testing.T) {
	// Files written before a failed commit stay on disk; only rows roll back.
	dir := t.TempDir()
	store := storage.NewLocalStore(dir)

	path, err := store.Save("orphan.txt", []byte("left behind"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}
