package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-contacts-api/internal/model"
)

const contactColumns = `id, user_id, name, surname, email, phone,
	COALESCE(birthday::text, ''), COALESCE(city, ''), COALESCE(notes, ''), created_at, updated_at`

type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func scanContact(row pgx.Row) (model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Surname, &c.Email, &c.Phone,
		&c.Birthday, &c.City, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, model.ErrContactNotFound
	}
	return c, err
}

// List returns one page of contacts. userID 0 lists every user's contacts.
func (r *ContactRepository) List(ctx context.Context, userID int64, page model.ContactPage) ([]model.Contact, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if userID == 0 {
		rows, err = r.pool.Query(ctx,
			`SELECT `+contactColumns+` FROM contacts ORDER BY id LIMIT $1 OFFSET $2`,
			page.Limit, page.Offset)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE user_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
			userID, page.Limit, page.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) Get(ctx context.Context, userID int64, id int64) (model.Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil && !errors.Is(err, model.ErrContactNotFound) {
		return model.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, err
}

func (r *ContactRepository) Create(ctx context.Context, c model.Contact) (model.Contact, error) {
	created, err := scanContact(r.pool.QueryRow(ctx,
		`INSERT INTO contacts (user_id, name, surname, email, phone, birthday, city, notes)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::date, $7, $8)
		 RETURNING `+contactColumns,
		c.UserID, c.Name, c.Surname, c.Email, c.Phone, c.Birthday, c.City, c.Notes))
	if isUniqueViolation(err) {
		return model.Contact{}, fmt.Errorf("%w: %s", model.ErrContactAlreadyExists, c.Email)
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return created, nil
}

func (r *ContactRepository) Update(ctx context.Context, c model.Contact) (model.Contact, error) {
	updated, err := scanContact(r.pool.QueryRow(ctx,
		`UPDATE contacts
		 SET name = $3, surname = $4, email = $5, phone = $6,
		     birthday = NULLIF($7, '')::date, city = $8, notes = $9, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+contactColumns,
		c.ID, c.UserID, c.Name, c.Surname, c.Email, c.Phone, c.Birthday, c.City, c.Notes))
	if isUniqueViolation(err) {
		return model.Contact{}, fmt.Errorf("%w: %s", model.ErrContactAlreadyExists, c.Email)
	}
	if err != nil && !errors.Is(err, model.ErrContactNotFound) {
		return model.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return updated, err
}

func (r *ContactRepository) Delete(ctx context.Context, userID int64, id int64) (model.Contact, error) {
	deleted, err := scanContact(r.pool.QueryRow(ctx,
		`DELETE FROM contacts WHERE id = $1 AND user_id = $2 RETURNING `+contactColumns,
		id, userID))
	if err != nil && !errors.Is(err, model.ErrContactNotFound) {
		return model.Contact{}, fmt.Errorf("delete contact: %w", err)
	}
	return deleted, err
}
