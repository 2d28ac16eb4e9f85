package library

import (
	"context"
	"database/sql"
	"errors"
)

// Authenticate checks the credentials against the operator table and returns
// the session to attach to subsequent requests.
func (d *Database) Authenticate(ctx context.Context, username, password string) (Session, error) {
	var op Operator
	err := d.db.GetContext(ctx, &op,
		`SELECT id,username,password FROM operator WHERE username=? AND password=?`, username, password)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, classify("authenticate", err)
	}
	return Session{OperatorID: op.ID, Username: op.Username}, nil
}

// AddOperator creates an operator account. Usernames are unique.
func (d *Database) AddOperator(ctx context.Context, username, password string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `INSERT INTO operator(username,password) VALUES(?,?)`, username, password)
	if err != nil {
		return 0, classify("add operator", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("add operator", err)
	}
	d.logMutation(ctx, "add operator", id)
	return id, nil
}
