// Package database reads alert recipient rows from PostgreSQL. The
// rows are written by the external subscription system; this side only
// reads them.
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/quantvn/signals/models"
)

// DB represents a database connection.
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters.
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New creates a new database connection.
func New(params ConnectionParams) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_recipients (
			user_id BIGINT PRIMARY KEY,
			telegram_chat_id TEXT,
			email TEXT,
			channels TEXT NOT NULL DEFAULT 'websocket',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// GetRecipients returns every configured alert recipient.
func (db *DB) GetRecipients() ([]models.AlertRecipient, error) {
	rows, err := db.Query(`
		SELECT user_id, COALESCE(telegram_chat_id, ''), COALESCE(email, ''), channels
		FROM alert_recipients
	`)
	if err != nil {
		return nil, fmt.Errorf("querying recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.AlertRecipient
	for rows.Next() {
		var rec models.AlertRecipient
		var channels string
		if err := rows.Scan(&rec.UserID, &rec.TelegramChatID, &rec.Email, &channels); err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		rec.Channels = parseChannels(channels)
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

// GetRecipient returns one recipient by user id.
func (db *DB) GetRecipient(userID int64) (models.AlertRecipient, error) {
	var rec models.AlertRecipient
	var channels string
	err := db.QueryRow(`
		SELECT user_id, COALESCE(telegram_chat_id, ''), COALESCE(email, ''), channels
		FROM alert_recipients WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.TelegramChatID, &rec.Email, &channels)
	if err != nil {
		return models.AlertRecipient{}, fmt.Errorf("querying recipient %d: %w", userID, err)
	}
	rec.Channels = parseChannels(channels)
	return rec, nil
}

// parseChannels converts the stored comma-separated list. Unknown
// values are dropped; an empty list defaults to websocket.
func parseChannels(raw string) []models.AlertChannel {
	var out []models.AlertChannel
	for _, part := range strings.Split(raw, ",") {
		switch models.AlertChannel(strings.TrimSpace(strings.ToLower(part))) {
		case models.ChannelTelegram:
			out = append(out, models.ChannelTelegram)
		case models.ChannelEmail:
			out = append(out, models.ChannelEmail)
		case models.ChannelWebsocket:
			out = append(out, models.ChannelWebsocket)
		case models.ChannelAll:
			out = append(out, models.ChannelAll)
		}
	}
	if len(out) == 0 {
		out = []models.AlertChannel{models.ChannelWebsocket}
	}
	return out
}
