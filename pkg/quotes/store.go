package quotes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Input is one landed-cost wizard submission. The service stores and echoes
// these; no cost calculation is performed.
type Input struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	ProductName        string    `json:"productName"`
	HSCode             string    `json:"hsCode,omitempty"`
	DeclaredValue      float64   `json:"declaredValue"`
	Quantity           int       `json:"quantity"`
	OriginCountry      string    `json:"originCountry"`
	DestinationCountry string    `json:"destinationCountry"`
	Incoterm           string    `json:"incoterm,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Store persists quote inputs per user
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewStore creates a quote input store
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

func (s *Store) rebind(query string) string {
	if s.driver != "sqlite3" {
		return query
	}
	out := query
	for i := 10; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), "?")
	}
	return out
}

// Migrate creates the quote_inputs table if it does not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quote_inputs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			hs_code TEXT,
			declared_value REAL NOT NULL,
			quantity INTEGER NOT NULL,
			origin_country TEXT NOT NULL,
			destination_country TEXT NOT NULL,
			incoterm TEXT,
			created_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("quote_inputs migration failed: %w", err)
	}
	return nil
}

// Create stores a new quote input for the user
func (s *Store) Create(ctx context.Context, input *Input) (*Input, error) {
	input.ID = uuid.NewString()
	input.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO quote_inputs (id, user_id, product_name, hs_code, declared_value, quantity, origin_country, destination_country, incoterm, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`), input.ID, input.UserID, input.ProductName, input.HSCode, input.DeclaredValue,
		input.Quantity, input.OriginCountry, input.DestinationCountry, input.Incoterm, input.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote input: %w", err)
	}
	return input, nil
}

// ListByUser returns the user's quote inputs, newest first
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Input, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, product_name, COALESCE(hs_code, ''), declared_value, quantity,
			origin_country, destination_country, COALESCE(incoterm, ''), created_at
		FROM quote_inputs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quote inputs: %w", err)
	}
	defer rows.Close()

	inputs := make([]*Input, 0)
	for rows.Next() {
		input := &Input{}
		err := rows.Scan(&input.ID, &input.UserID, &input.ProductName, &input.HSCode,
			&input.DeclaredValue, &input.Quantity, &input.OriginCountry,
			&input.DestinationCountry, &input.Incoterm, &input.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote input: %w", err)
		}
		inputs = append(inputs, input)
	}
	return inputs, rows.Err()
}
