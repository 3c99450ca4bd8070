package usecase

import (
	"context"
	"sort"
	"strings"

	crmrepository "edcrm-backend/internal/crm/repository"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/internal/sync/repository"
)

// matchPageSize bounds the records held in memory per matching sweep page.
const matchPageSize = 500

// matchingUsecase implements MatchingUsecase
type matchingUsecase struct {
	educatorRepo crmrepository.EducatorRepository
	messageRepo  repository.MessageRepository
	eventRepo    repository.EventRepository
}

func NewMatchingUsecase(
	educatorRepo crmrepository.EducatorRepository,
	messageRepo repository.MessageRepository,
	eventRepo repository.EventRepository,
) MatchingUsecase {
	return &matchingUsecase{
		educatorRepo: educatorRepo,
		messageRepo:  messageRepo,
		eventRepo:    eventRepo,
	}
}

// RefreshMailMatches recomputes each message's educator set from the CRM
// email index. The default mode replaces the stored set so educators removed
// from the CRM drop off; merge unions instead, preserving associations made
// under an older index.
func (u *matchingUsecase) RefreshMailMatches(ctx context.Context, userID string, merge bool) (*MatchSummary, error) {
	index, err := u.educatorRepo.EmailIndex()
	if err != nil {
		return nil, &syncdomain.PersistenceError{Op: "load educator email index", Err: err}
	}

	summary := &MatchSummary{}
	for offset := 0; ; offset += matchPageSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		page, err := u.messageRepo.FindPage(userID, offset, matchPageSize)
		if err != nil {
			return summary, &syncdomain.PersistenceError{Op: "page messages for matching", Err: err}
		}
		for _, rec := range page {
			computed := matchAddresses(index, rec.AllAddresses())
			next := computed
			if merge {
				next = unionIDs(rec.MatchedEducatorIDs, computed)
			}
			summary.Scanned++
			if sameIDs(rec.MatchedEducatorIDs, next) {
				continue
			}
			if err := u.messageRepo.UpdateMatches(rec.ID, next); err != nil {
				return summary, &syncdomain.PersistenceError{Op: "update message matches", Err: err}
			}
			summary.Updated++
		}
		if len(page) < matchPageSize {
			return summary, nil
		}
	}
}

// RefreshCalendarMatches is the event-side counterpart, matching on organizer
// and attendee addresses.
func (u *matchingUsecase) RefreshCalendarMatches(ctx context.Context, userID string, merge bool) (*MatchSummary, error) {
	index, err := u.educatorRepo.EmailIndex()
	if err != nil {
		return nil, &syncdomain.PersistenceError{Op: "load educator email index", Err: err}
	}

	summary := &MatchSummary{}
	for offset := 0; ; offset += matchPageSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		page, err := u.eventRepo.FindPage(userID, offset, matchPageSize)
		if err != nil {
			return summary, &syncdomain.PersistenceError{Op: "page events for matching", Err: err}
		}
		for _, rec := range page {
			computed := matchAddresses(index, rec.AllAddresses())
			next := computed
			if merge {
				next = unionIDs(rec.MatchedEducatorIDs, computed)
			}
			summary.Scanned++
			if sameIDs(rec.MatchedEducatorIDs, next) {
				continue
			}
			if err := u.eventRepo.UpdateMatches(rec.ID, next); err != nil {
				return summary, &syncdomain.PersistenceError{Op: "update event matches", Err: err}
			}
			summary.Updated++
		}
		if len(page) < matchPageSize {
			return summary, nil
		}
	}
}

// matchAddresses resolves a record's addresses against the email index,
// returning a sorted, deduplicated educator id set.
func matchAddresses(index map[string][]string, addresses []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, addr := range addresses {
		key := strings.ToLower(strings.TrimSpace(addr))
		for _, id := range index[key] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

func unionIDs(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// sameIDs compares two id sets ignoring order.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
