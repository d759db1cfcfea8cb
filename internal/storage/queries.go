package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type NodeRow struct {
	Seq        int64
	Path       string
	ID         string
	Data       string
	CreatedAt  time.Time
	ExportedAt sql.NullTime
}

type UserRow struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

const insertNode = `INSERT INTO nodes (path, id, data) VALUES (?, ?, ?)`

func (q *Queries) InsertNode(ctx context.Context, path, id, data string) error {
	_, err := q.db.ExecContext(ctx, insertNode, path, id, data)
	return err
}

const deleteNode = `DELETE FROM nodes WHERE path = ? AND id = ?`

func (q *Queries) DeleteNode(ctx context.Context, path, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteNode, path, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const nodeColumns = `seq, path, id, data, created_at, exported_at`

const getNode = `SELECT ` + nodeColumns + ` FROM nodes WHERE path = ? AND id = ?`

func (q *Queries) GetNode(ctx context.Context, path, id string) (NodeRow, error) {
	return scanNode(q.db.QueryRowContext(ctx, getNode, path, id))
}

const listNodes = `SELECT ` + nodeColumns + ` FROM nodes WHERE path = ? ORDER BY seq`

func (q *Queries) ListNodes(ctx context.Context, path string) ([]NodeRow, error) {
	return q.queryNodes(ctx, listNodes, path)
}

const listUnexported = `SELECT ` + nodeColumns + ` FROM nodes
WHERE exported_at IS NULL AND path LIKE 'users/%/transactions'
ORDER BY seq LIMIT ?`

func (q *Queries) ListUnexported(ctx context.Context, limit int64) ([]NodeRow, error) {
	return q.queryNodes(ctx, listUnexported, limit)
}

const markExported = `UPDATE nodes SET exported_at = CURRENT_TIMESTAMP WHERE path = ? AND id = ?`

func (q *Queries) MarkExported(ctx context.Context, path, id string) error {
	_, err := q.db.ExecContext(ctx, markExported, path, id)
	return err
}

const insertUser = `INSERT INTO users (uid, email, password_hash) VALUES (?, ?, ?)`

func (q *Queries) InsertUser(ctx context.Context, uid, email, hash string) error {
	_, err := q.db.ExecContext(ctx, insertUser, uid, email, hash)
	return err
}

const getUserByEmail = `SELECT uid, email, password_hash, created_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&u.UID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const getUserByID = `SELECT uid, email, password_hash, created_at FROM users WHERE uid = ?`

func (q *Queries) GetUserByID(ctx context.Context, uid string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, getUserByID, uid).Scan(&u.UID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (q *Queries) queryNodes(ctx context.Context, query string, args ...interface{}) ([]NodeRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NodeRow
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(s scanner) (NodeRow, error) {
	var n NodeRow
	err := s.Scan(&n.Seq, &n.Path, &n.ID, &n.Data, &n.CreatedAt, &n.ExportedAt)
	return n, err
}
