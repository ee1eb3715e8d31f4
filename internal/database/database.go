package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"card-offers-api/internal/expiry"
	"card-offers-api/internal/models"
)

// Connection pool size. Ingestion and listing are both short statements, so a
// small fixed pool bounds concurrent database work.
const maxOpenConns = 5

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)

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
			id TEXT NOT NULL,
			card_num TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			source TEXT NOT NULL,
			card_label TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			expires TEXT,
			categories TEXT NOT NULL DEFAULT '[]',
			channels TEXT NOT NULL DEFAULT '[]',
			enrolled INTEGER NOT NULL DEFAULT 0,
			highlighted INTEGER NOT NULL DEFAULT 0,
			collected_at TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id, card_num, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_user ON offers(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_user_card ON offers(user_id, card_num)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_user_source ON offers(user_id, source)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_expires ON offers(expires)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// UpsertOffers writes a batch of offers for a user in a single transaction.
// On conflict with an existing (id, card_num, user_id) row every
// source-provided field is overwritten; the user-set highlighted flag is
// preserved. Returns the number of offers processed.
func (db *DB) UpsertOffers(userID string, offers []models.Offer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO offers (
		id, card_num, user_id, source, card_label, title, summary, image,
		expires, categories, channels, enrolled, collected_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id, card_num, user_id) DO UPDATE SET
		source = excluded.source,
		card_label = excluded.card_label,
		title = excluded.title,
		summary = excluded.summary,
		image = excluded.image,
		expires = excluded.expires,
		categories = excluded.categories,
		channels = excluded.channels,
		enrolled = excluded.enrolled,
		collected_at = excluded.collected_at,
		updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	processed := 0
	for _, offer := range offers {
		_, err := stmt.Exec(
			offer.ID,
			offer.CardNum,
			userID,
			offer.Source,
			offer.CardLabel,
			offer.Title,
			offer.Summary,
			offer.Image,
			nullableDate(offer.Expires),
			serializeTags(offer.Categories),
			serializeTags(offer.Channels),
			offer.Enrolled,
			offer.CollectedAt.UTC().Format(time.RFC3339),
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert offer %s: %w", offer.ID, err)
		}
		processed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return processed, nil
}

// ReapStale deletes rows in a (user, card) partition whose id is not in
// keepIDs. Rows under other cards are untouched. Returns rows deleted.
func (db *DB) ReapStale(userID, cardNum string, keepIDs []string) (int, error) {
	if len(keepIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM offers WHERE user_id = ? AND card_num = ? AND id NOT IN (`
	args := []interface{}{userID, cardNum}
	for i, id := range keepIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale offers: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reaped offers: %w", err)
	}

	return int(deleted), nil
}

// ListOffers returns one page of a user's offers plus the distinct-id total
// and the raw row total for the filter. Offers whose expiry date is strictly
// before now's calendar date are excluded; null expiries always match.
func (db *DB) ListOffers(userID string, q models.ListOffersQuery, now time.Time) ([]models.Offer, int, int, error) {
	where, args := buildFilter(userID, q, now)

	var total, totalRows int
	countQuery := `SELECT COUNT(DISTINCT id), COUNT(*) FROM offers WHERE ` + where
	if err := db.conn.QueryRow(countQuery, args...).Scan(&total, &totalRows); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count offers: %w", err)
	}

	query := `SELECT id, card_num, source, card_label, title, summary, image,
		expires, categories, channels, enrolled, highlighted, collected_at
		FROM offers WHERE ` + where + `
		ORDER BY (expires IS NULL) ASC, expires ASC, id ASC
		LIMIT ? OFFSET ?`
	pageArgs := append(append([]interface{}{}, args...), q.Limit, (q.Page-1)*q.Limit)

	rows, err := db.conn.Query(query, pageArgs...)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		var offer models.Offer
		var expires sql.NullString
		var categoriesJSON, channelsJSON, collectedAtStr string

		err := rows.Scan(
			&offer.ID,
			&offer.CardNum,
			&offer.Source,
			&offer.CardLabel,
			&offer.Title,
			&offer.Summary,
			&offer.Image,
			&expires,
			&categoriesJSON,
			&channelsJSON,
			&offer.Enrolled,
			&offer.Highlighted,
			&collectedAtStr,
		)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to scan offer: %w", err)
		}

		offer.Expires = expires.String
		offer.Categories = deserializeTags(categoriesJSON)
		offer.Channels = deserializeTags(channelsJSON)
		if t, err := time.Parse(time.RFC3339, collectedAtStr); err == nil {
			offer.CollectedAt = t
		}

		offers = append(offers, offer)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, total, totalRows, nil
}

func buildFilter(userID string, q models.ListOffersQuery, now time.Time) (string, []interface{}) {
	conds := []string{"user_id = ?"}
	args := []interface{}{userID}

	conds = append(conds, "(expires IS NULL OR expires >= ?)")
	args = append(args, expiry.Cutoff(now))

	if q.Search != "" {
		conds = append(conds, "(title LIKE ? OR summary LIKE ?)")
		pattern := "%" + q.Search + "%"
		args = append(args, pattern, pattern)
	}
	if q.CardNum != "" {
		conds = append(conds, "card_num = ?")
		args = append(args, q.CardNum)
	}
	if q.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, q.Source)
	}
	if q.Highlighted != nil {
		conds = append(conds, "highlighted = ?")
		args = append(args, *q.Highlighted)
	}

	return strings.Join(conds, " AND "), args
}

// SetHighlight flips the user-set highlight flag. A nil cardNum applies to
// every row with that id for the user; otherwise only the matching card's
// row. Returns rows updated.
func (db *DB) SetHighlight(userID, offerID string, cardNum *string, highlighted bool) (int, error) {
	query := `UPDATE offers SET highlighted = ?, updated_at = ? WHERE user_id = ? AND id = ?`
	args := []interface{}{highlighted, time.Now().UTC().Format(time.RFC3339), userID, offerID}

	if cardNum != nil {
		query += " AND card_num = ?"
		args = append(args, *cardNum)
	}

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update highlight: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated rows: %w", err)
	}

	return int(updated), nil
}

// PurgeOffers bulk-deletes a user's offers. An empty source deletes all of
// the user's rows; otherwise only rows from that source. Returns rows deleted.
func (db *DB) PurgeOffers(userID, source string) (int, error) {
	query := `DELETE FROM offers WHERE user_id = ?`
	args := []interface{}{userID}

	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge offers: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}

	return int(deleted), nil
}

func nullableDate(date string) interface{} {
	if date == "" {
		return nil
	}
	return date
}

// serializeTags converts a tag list to a JSON string for storage.
func serializeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// deserializeTags converts a stored tag column back to a list. Malformed
// stored values read back as an empty list rather than failing the read.
func deserializeTags(serialized string) []string {
	if serialized == "" || serialized == "[]" {
		return []string{}
	}

	var result []string
	if err := json.Unmarshal([]byte(serialized), &result); err != nil {
		return []string{}
	}
	return result
}
