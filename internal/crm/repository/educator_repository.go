package repository

import (
	"strings"

	crmdomain "edcrm-backend/internal/crm/domain"

	"gorm.io/gorm"
)

// EducatorRepository exposes the read model the matcher joins against.
type EducatorRepository interface {
	// EmailIndex returns lowercase email address -> educator ids, covering
	// primary and alternate addresses.
	EmailIndex() (map[string][]string, error)
}

type educatorRepository struct {
	db *gorm.DB
}

func NewEducatorRepository(db *gorm.DB) EducatorRepository {
	return &educatorRepository{
		db: db,
	}
}

func (r *educatorRepository) EmailIndex() (map[string][]string, error) {
	var educators []crmdomain.Educator
	if err := r.db.Select("id", "email", "alternate_email").Find(&educators).Error; err != nil {
		return nil, err
	}

	index := make(map[string][]string, len(educators))
	add := func(email, id string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			return
		}
		for _, existing := range index[email] {
			if existing == id {
				return
			}
		}
		index[email] = append(index[email], id)
	}

	for _, e := range educators {
		add(e.Email, e.ID)
		add(e.AlternateEmail, e.ID)
	}
	return index, nil
}
