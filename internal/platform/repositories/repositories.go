package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	apperrors "keygate/internal/pkg/errors"
	"keygate/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

// CreateTx inserts the organization inside an existing transaction.
// Returns ErrConflict when the name is already taken; the UNIQUE
// constraint on name backs the pre-check.
func (r *OrganizationRepository) CreateTx(tx *sql.Tx, org *models.Organization) error {
	var existing string
	err := tx.QueryRow(`SELECT id FROM organizations WHERE name = ?`, org.Name).Scan(&existing)
	if err == nil {
		return apperrors.ErrConflict
	}
	if err != sql.ErrNoRows {
		return err
	}

	if org.ID == "" {
		org.ID = "org_" + uuid.NewString()
	}
	org.CreatedAt = time.Now().Unix()

	_, err = tx.Exec(`
		INSERT INTO organizations (id, name, created_at)
		VALUES (?, ?, ?)
	`, org.ID, org.Name, org.CreatedAt)
	return err
}

func (r *OrganizationRepository) Create(org *models.Organization) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.CreateTx(tx, org); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, name, created_at FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) GetByName(name string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, name, created_at FROM organizations WHERE name = ?
	`, name).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateTx(tx *sql.Tx, user *models.User) error {
	var existing string
	err := tx.QueryRow(`SELECT id FROM users WHERE username = ?`, user.Username).Scan(&existing)
	if err == nil {
		return apperrors.ErrConflict
	}
	if err != sql.ErrNoRows {
		return err
	}

	if user.ID == "" {
		user.ID = "usr_" + uuid.NewString()
	}
	if user.Tier == "" {
		user.Tier = models.TierStandard
	}
	user.CreatedAt = time.Now().Unix()

	_, err = tx.Exec(`
		INSERT INTO users (id, organization_id, username, password_hash, is_admin, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.OrganizationID, user.Username, user.PasswordHash, user.IsAdmin, string(user.Tier), user.CreatedAt)
	return err
}

func (r *UserRepository) Create(user *models.User) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.CreateTx(tx, user); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.getBy(`id`, id)
}

func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	return r.getBy(`username`, username)
}

func (r *UserRepository) getBy(column, value string) (*models.User, error) {
	user := &models.User{}
	var tier string
	err := r.db.QueryRow(`
		SELECT id, organization_id, username, password_hash, is_admin, tier, created_at
		FROM users WHERE `+column+` = ?
	`, value).Scan(&user.ID, &user.OrganizationID, &user.Username, &user.PasswordHash, &user.IsAdmin, &tier, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	user.Tier = models.ParseTier(tier)
	return user, nil
}
