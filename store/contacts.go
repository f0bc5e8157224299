package store

import (
	"database/sql"
	"fmt"

	"github.com/signal-golang/siglink/contacts"
)

const contactColumns = `uuid, phone, name, profile_key, color, blocked, expire_timer, archived`

// SaveContact upserts a contact by its ID.
func (s *DB) SaveContact(c *contacts.Contact) error {
	_, err := s.db.Exec(
		`INSERT INTO contacts (id, `+contactColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			uuid = excluded.uuid,
			phone = excluded.phone,
			name = excluded.name,
			profile_key = excluded.profile_key,
			color = excluded.color,
			blocked = excluded.blocked,
			expire_timer = excluded.expire_timer,
			archived = excluded.archived,
			updated_at = excluded.updated_at`,
		c.ID(), c.UUID, c.Tel, c.Name, c.ProfileKey, c.Color, boolInt(c.Blocked), c.ExpireTimer, boolInt(c.Archived), now(),
	)
	if err != nil {
		return fmt.Errorf("save contact %s: %w", c.ID(), err)
	}
	return nil
}

func scanContact(row scanner) (*contacts.Contact, error) {
	c := &contacts.Contact{}
	var blocked, archived int
	if err := row.Scan(&c.UUID, &c.Tel, &c.Name, &c.ProfileKey, &c.Color, &blocked, &c.ExpireTimer, &archived); err != nil {
		return nil, err
	}
	c.Blocked = blocked != 0
	c.Archived = archived != 0
	return c, nil
}

// GetContact returns ErrNotFound for an unknown id.
func (s *DB) GetContact(id string) (*contacts.Contact, error) {
	c, err := scanContact(s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %s: %w", id, err)
	}
	return c, nil
}

// ListContacts returns all contacts ordered by name.
func (s *DB) ListContacts() ([]contacts.Contact, error) {
	rows, err := s.db.Query(`SELECT ` + contactColumns + ` FROM contacts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []contacts.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
