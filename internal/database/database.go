package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"offer-tracker/internal/models"
)

// Preference keys held in the preferences store.
const (
	PrefTheme                = "theme"
	PrefDashboardPreferences = "dashboardPreferences"
)

const userSettingsRowID = "current"

// ErrEmpty is returned when a store holds nothing yet.
var ErrEmpty = errors.New("database: store is empty")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS offers (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			case_number TEXT NOT NULL,
			channel TEXT NOT NULL,
			offer_type TEXT NOT NULL,
			date TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			followup_date TEXT,
			followup_completed INTEGER NOT NULL DEFAULT 0,
			conversion_date TEXT,
			converted INTEGER NOT NULL DEFAULT 0,
			csat TEXT NOT NULL DEFAULT '',
			csat_comment TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_position ON offers(position)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_case_number ON offers(case_number)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_followup ON offers(followup_date, followup_completed)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// LoadOffers returns the whole offer collection in its saved order.
// ErrEmpty is returned when nothing has been saved.
func (db *DB) LoadOffers(ctx context.Context) ([]models.Offer, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, case_number, channel, offer_type, date,
		notes, followup_date, followup_completed, conversion_date, csat, csat_comment
		FROM offers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		var (
			offer                      models.Offer
			dateStr                    string
			followupStr, conversionStr sql.NullString
			csat                       string
		)

		err := rows.Scan(
			&offer.ID,
			&offer.CaseNumber,
			&offer.Channel,
			&offer.OfferType,
			&dateStr,
			&offer.Notes,
			&followupStr,
			&offer.FollowupCompleted,
			&conversionStr,
			&csat,
			&offer.CSATComment,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offer.CSAT = models.CSAT(csat)

		offer.Date, err = time.Parse(time.RFC3339Nano, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date of offer %s: %w", offer.ID, err)
		}

		if followupStr.Valid {
			t, err := time.Parse(time.RFC3339Nano, followupStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse followup_date of offer %s: %w", offer.ID, err)
			}
			offer.FollowupDate = &t
		}

		if conversionStr.Valid {
			t, err := time.Parse(time.RFC3339Nano, conversionStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse conversion_date of offer %s: %w", offer.ID, err)
			}
			offer.Conversion = models.ConvertedOn(t)
		}

		offers = append(offers, offer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	if len(offers) == 0 {
		return nil, ErrEmpty
	}

	return offers, nil
}

// ReplaceOffers stores the full collection, replacing whatever was saved before,
// inside a single transaction.
func (db *DB) ReplaceOffers(ctx context.Context, offers []models.Offer) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM offers`); err != nil {
		return fmt.Errorf("failed to clear offers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO offers (
		id, position, case_number, channel, offer_type, date, notes,
		followup_date, followup_completed, conversion_date, converted, csat, csat_comment
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, offer := range offers {
		var followup, conversion sql.NullString
		if offer.FollowupDate != nil {
			followup = sql.NullString{String: offer.FollowupDate.Format(time.RFC3339Nano), Valid: true}
		}
		if d, ok := offer.Conversion.Date(); ok {
			conversion = sql.NullString{String: d.Format(time.RFC3339Nano), Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			offer.ID,
			i,
			offer.CaseNumber,
			offer.Channel,
			offer.OfferType,
			offer.Date.Format(time.RFC3339Nano),
			offer.Notes,
			followup,
			offer.FollowupCompleted,
			conversion,
			offer.Conversion.Converted(),
			string(offer.CSAT),
			offer.CSATComment,
		)
		if err != nil {
			return fmt.Errorf("failed to insert offer %s: %w", offer.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadUserSettings returns the saved settings bag, or ErrEmpty.
func (db *DB) LoadUserSettings(ctx context.Context) (models.UserSettings, error) {
	var data string
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM user_settings WHERE id = ?`, userSettingsRowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserSettings{}, ErrEmpty
	}
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("failed to query user settings: %w", err)
	}

	var settings models.UserSettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return models.UserSettings{}, fmt.Errorf("failed to decode user settings: %w", err)
	}
	return settings, nil
}

// SaveUserSettings upserts the settings bag.
func (db *DB) SaveUserSettings(ctx context.Context, settings models.UserSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode user settings: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO user_settings (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userSettingsRowID, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert user settings: %w", err)
	}
	return nil
}

// GetPreference decodes the JSON value stored under key into dest.
func (db *DB) GetPreference(ctx context.Context, key string, dest any) error {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEmpty
	}
	if err != nil {
		return fmt.Errorf("failed to query preference %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return fmt.Errorf("failed to decode preference %s: %w", key, err)
	}
	return nil
}

// SetPreference stores value as JSON under key.
func (db *DB) SetPreference(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode preference %s: %w", key, err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert preference %s: %w", key, err)
	}
	return nil
}

// Clear empties every store.
func (db *DB) Clear(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"offers", "user_settings", "preferences"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
