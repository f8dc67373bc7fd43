package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

type PgContactRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgContactRepository(db DB, logger *slog.Logger) repository.ContactRepository {
	return &PgContactRepository{db: db, logger: logger.With("component", "contact_repository_pg")}
}

func (r *PgContactRepository) Create(ctx context.Context, c *core_domain.Contact) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		INSERT INTO contacts (id, phone, name, email, metadata, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query, c.ID, c.Phone, c.Name, c.Email, metadata, c.Status, c.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating contact", "error", err, "contact_id", c.ID)
		return err
	}
	return nil
}

func (r *PgContactRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*core_domain.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, phone, name, email, metadata, status, created_at
		FROM contacts
		WHERE id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*core_domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *PgContactRepository) GetByPhone(ctx context.Context, phone string) (*core_domain.Contact, error) {
	query := `
		SELECT id, phone, name, email, metadata, status, created_at
		FROM contacts
		WHERE phone = $1
	`
	c, err := scanContact(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanContact(row pgx.Row) (*core_domain.Contact, error) {
	c := &core_domain.Contact{}
	var metadata []byte
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Email, &metadata, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return c, nil
}
