package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	accountusecase "edcrm-backend/internal/account/usecase"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/internal/sync/repository"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/sanitize"

	"github.com/google/uuid"
)

// backfillUsecase implements BackfillUsecase
type backfillUsecase struct {
	accounts       accountusecase.AccountUsecase
	provider       Provider
	blobs          BlobStore
	matching       MatchingUsecase
	messageRepo    repository.MessageRepository
	eventRepo      repository.EventRepository
	attachmentRepo repository.AttachmentRepository
	historyRepo    repository.HistoryRepository
	consoleRepo    repository.ConsoleLogRepository
	config         *config.Config
}

func NewBackfillUsecase(
	accounts accountusecase.AccountUsecase,
	provider Provider,
	blobs BlobStore,
	matching MatchingUsecase,
	messageRepo repository.MessageRepository,
	eventRepo repository.EventRepository,
	attachmentRepo repository.AttachmentRepository,
	historyRepo repository.HistoryRepository,
	consoleRepo repository.ConsoleLogRepository,
	cfg *config.Config,
) BackfillUsecase {
	return &backfillUsecase{
		accounts:       accounts,
		provider:       provider,
		blobs:          blobs,
		matching:       matching,
		messageRepo:    messageRepo,
		eventRepo:      eventRepo,
		attachmentRepo: attachmentRepo,
		historyRepo:    historyRepo,
		consoleRepo:    consoleRepo,
		config:         cfg,
	}
}

func (u *backfillUsecase) console(userID, runID string, syncType syncdomain.SyncType, level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[Backfill] user=%s type=%s %s", userID, syncType, msg)
	if err := u.consoleRepo.Append(userID, runID, syncType, level, msg); err != nil {
		log.Printf("[Backfill] Could not append console log for user %s: %v", userID, err)
	}
}

// BackfillMail downloads full content for up to limit matched messages that
// still lack it. A failing item is skipped and counted; it stays a candidate
// for the next batch. Auth failure aborts the batch since every remaining
// item would fail the same way.
func (u *backfillUsecase) BackfillMail(ctx context.Context, userID string, limit int, initiator string) (*BackfillResult, error) {
	account, err := u.accounts.ValidAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = u.config.BackfillBatchSize
	}

	candidates, err := u.messageRepo.FindBackfillCandidates(userID, limit)
	if err != nil {
		return nil, &syncdomain.PersistenceError{Op: "find mail backfill candidates", Err: err}
	}

	runID := uuid.New().String()
	onRefresh := u.accounts.TokenUpdateCallback(userID)
	result := &BackfillResult{Drained: len(candidates) < limit}
	startedAt := time.Now().UTC()
	var batchErr error

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			batchErr = err
			break
		}

		content, err := u.provider.MailContent(ctx, account, onRefresh, rec.ProviderMessageID)
		if err != nil {
			if syncdomain.IsAuthError(err) {
				batchErr = err
				break
			}
			result.Processed++
			result.Failed++
			u.console(userID, runID, syncdomain.SyncTypeGmail, syncdomain.LogLevelWarn, "message %s skipped: %v", rec.ProviderMessageID, err)
			continue
		}

		subject := sanitize.Text(content.Subject)
		bodyText := sanitize.Text(content.BodyText)
		bodyHTML := sanitize.Text(content.BodyHTML)
		if err := u.messageRepo.UpdateContent(userID, rec.ProviderMessageID, &subject, &bodyText, &bodyHTML); err != nil {
			batchErr = &syncdomain.PersistenceError{Op: "store message content", Err: err}
			break
		}

		for _, att := range content.Attachments {
			if att.AttachmentID == "" {
				// Inline part with a filename but no downloadable body.
				continue
			}
			data, err := u.provider.MailAttachment(ctx, account, onRefresh, rec.ProviderMessageID, att.AttachmentID)
			if err != nil {
				if syncdomain.IsAuthError(err) {
					batchErr = err
					break
				}
				u.console(userID, runID, syncdomain.SyncTypeGmail, syncdomain.LogLevelWarn, "attachment %s of message %s skipped: %v", att.AttachmentID, rec.ProviderMessageID, err)
				continue
			}
			key, err := u.blobs.SaveMailAttachment(ctx, userID, rec.ProviderMessageID, att.AttachmentID, att.Filename, att.MimeType, data)
			if err != nil {
				u.console(userID, runID, syncdomain.SyncTypeGmail, syncdomain.LogLevelWarn, "attachment %s of message %s not stored: %v", att.AttachmentID, rec.ProviderMessageID, err)
				continue
			}
			if err := u.attachmentRepo.UpsertMessageAttachment(&syncdomain.MessageAttachment{
				UserID:               userID,
				ProviderMessageID:    rec.ProviderMessageID,
				ProviderAttachmentID: att.AttachmentID,
				Filename:             att.Filename,
				MimeType:             att.MimeType,
				Size:                 int64(len(data)),
				StorageKey:           key,
			}); err != nil {
				batchErr = &syncdomain.PersistenceError{Op: "record message attachment", Err: err}
				break
			}
			result.Attachments++
		}
		if batchErr != nil {
			break
		}

		result.Processed++
		result.Succeeded++
	}

	if err := u.appendHistory(userID, syncdomain.SyncTypeGmail, initiator, startedAt, result, batchErr); err != nil {
		return result, err
	}
	u.refreshOnDrain(ctx, userID, runID, syncdomain.SyncTypeGmail, result, batchErr)
	return result, batchErr
}

// BackfillCalendar fetches full event bodies and mirrors linked Drive files
// into blob storage.
func (u *backfillUsecase) BackfillCalendar(ctx context.Context, userID string, limit int, initiator string) (*BackfillResult, error) {
	account, err := u.accounts.ValidAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = u.config.BackfillBatchSize
	}

	candidates, err := u.eventRepo.FindBackfillCandidates(userID, limit)
	if err != nil {
		return nil, &syncdomain.PersistenceError{Op: "find calendar backfill candidates", Err: err}
	}

	runID := uuid.New().String()
	onRefresh := u.accounts.TokenUpdateCallback(userID)
	result := &BackfillResult{Drained: len(candidates) < limit}
	startedAt := time.Now().UTC()
	var batchErr error

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			batchErr = err
			break
		}

		item, err := u.provider.Event(ctx, account, onRefresh, rec.CalendarID, rec.ProviderEventID)
		if err != nil {
			if syncdomain.IsAuthError(err) {
				batchErr = err
				break
			}
			result.Processed++
			result.Failed++
			u.console(userID, runID, syncdomain.SyncTypeCalendar, syncdomain.LogLevelWarn, "event %s skipped: %v", rec.ProviderEventID, err)
			continue
		}

		description := sanitize.Text(item.Description)
		if err := u.eventRepo.UpdateContent(userID, rec.CalendarID, rec.ProviderEventID, &description); err != nil {
			batchErr = &syncdomain.PersistenceError{Op: "store event description", Err: err}
			break
		}

		for _, att := range item.Attachments {
			if att.FileID == "" {
				continue
			}
			meta, data, err := u.provider.DriveFile(ctx, account, onRefresh, att.FileID)
			if err != nil {
				if syncdomain.IsAuthError(err) {
					batchErr = err
					break
				}
				u.console(userID, runID, syncdomain.SyncTypeCalendar, syncdomain.LogLevelWarn, "drive file %s of event %s skipped: %v", att.FileID, rec.ProviderEventID, err)
				continue
			}
			filename := meta.Name
			if filename == "" {
				filename = att.Title
			}
			key, err := u.blobs.SaveCalendarAttachment(ctx, userID, rec.ProviderEventID, att.FileID, filename, meta.MimeType, data)
			if err != nil {
				u.console(userID, runID, syncdomain.SyncTypeCalendar, syncdomain.LogLevelWarn, "drive file %s of event %s not stored: %v", att.FileID, rec.ProviderEventID, err)
				continue
			}
			if err := u.attachmentRepo.UpsertEventAttachment(&syncdomain.EventAttachment{
				UserID:          userID,
				ProviderEventID: rec.ProviderEventID,
				DriveFileID:     att.FileID,
				Filename:        filename,
				MimeType:        meta.MimeType,
				Size:            int64(len(data)),
				StorageKey:      key,
			}); err != nil {
				batchErr = &syncdomain.PersistenceError{Op: "record event attachment", Err: err}
				break
			}
			result.Attachments++
		}
		if batchErr != nil {
			break
		}

		result.Processed++
		result.Succeeded++
	}

	if err := u.appendHistory(userID, syncdomain.SyncTypeCalendar, initiator, startedAt, result, batchErr); err != nil {
		return result, err
	}
	u.refreshOnDrain(ctx, userID, runID, syncdomain.SyncTypeCalendar, result, batchErr)
	return result, batchErr
}

// refreshOnDrain runs a merge-mode matching sweep once a batch comes back
// smaller than its limit: the backlog is exhausted, so newly ingested headers
// get matched without waiting for the next scheduled pass. A refresh failure
// is logged; matching catches up on a later sweep.
func (u *backfillUsecase) refreshOnDrain(ctx context.Context, userID, runID string, syncType syncdomain.SyncType, result *BackfillResult, batchErr error) {
	if !result.Drained || batchErr != nil {
		return
	}
	refresh := u.matching.RefreshMailMatches
	if syncType == syncdomain.SyncTypeCalendar {
		refresh = u.matching.RefreshCalendarMatches
	}
	if _, err := refresh(ctx, userID, true); err != nil {
		u.console(userID, runID, syncType, syncdomain.LogLevelWarn, "post-drain matching refresh failed: %v", err)
	}
}

// appendHistory records the batch in the ledger. Backfill entries carry no
// period window and never satisfy the header-success predicate, so they are
// invisible to the watermark.
func (u *backfillUsecase) appendHistory(userID string, syncType syncdomain.SyncType, initiator string, startedAt time.Time, result *BackfillResult, batchErr error) error {
	now := time.Now().UTC()
	entry := &syncdomain.SyncHistoryEntry{
		UserID:                     userID,
		SyncType:                   syncType,
		Initiator:                  initiator,
		StartedAt:                  startedAt,
		CompletedAt:                &now,
		BackfillDownloads:          result.Processed,
		BackfillDownloadSuccessful: batchErr == nil && result.Failed == 0,
	}
	if batchErr != nil {
		entry.BackfillDownloadError = batchErr.Error()
	} else if result.Failed > 0 {
		entry.BackfillDownloadError = fmt.Sprintf("%d of %d items failed", result.Failed, result.Processed)
	}
	if err := u.historyRepo.Append(entry); err != nil {
		return &syncdomain.PersistenceError{Op: "append backfill history", Err: err}
	}
	return nil
}
