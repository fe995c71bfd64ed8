package database

import (
	"fmt"

	"github.com/go-while/go-goatweb/internal/models"
)

// DefaultMemoLimit is used by GetMemos when limit <= 0
const DefaultMemoLimit = 100

// InsertMemo stores a memo and sets its ID
func (db *Database) InsertMemo(memo *models.Memo) error {
	result, err := retryableExec(db.mainDB,
		`INSERT INTO memos (user_id, body) VALUES (?, ?)`, memo.UserID, memo.Body)
	if err != nil {
		return fmt.Errorf("failed to insert memo: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get memo id: %w", err)
	}
	memo.ID = id
	return nil
}

// GetMemos returns the newest memos first, joined with their author
func (db *Database) GetMemos(limit int) ([]*models.Memo, error) {
	if limit <= 0 {
		limit = DefaultMemoLimit
	}
	rows, err := retryableQuery(db.mainDB, `SELECT m.id, m.user_id, u.username, m.body, m.created_at
		FROM memos m JOIN users u ON u.id = m.user_id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memos: %w", err)
	}
	defer rows.Close()

	var memos []*models.Memo
	for rows.Next() {
		m := &models.Memo{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Author, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memo: %w", err)
		}
		memos = append(memos, m)
	}
	return memos, rows.Err()
}

// CountMemos returns the number of memos posted by userID
func (db *Database) CountMemos(userID int64) (int, error) {
	var n int
	err := retryableQueryRowScan(db.mainDB, `SELECT COUNT(*) FROM memos WHERE user_id = ?`,
		[]interface{}{userID}, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memos: %w", err)
	}
	return n, nil
}
