package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/xid"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var (
	_ repository.CredentialRepository   = (*CredentialDB)(nil)
	_ repository.InstallationRepository = (*InstallationDB)(nil)
)

// CredentialDB is the linked GitHub accounts store.
type CredentialDB struct {
	conn *sql.DB
}

// Upsert inserts the credential for (UserID, AccountType) or overwrites the
// existing one. The row keeps its original id and created_at; c is updated
// with the stored values.
func (db *CredentialDB) Upsert(ctx context.Context, c *model.Credential) error {
	t := now()
	if c.TokenType == "" {
		c.TokenType = "bearer"
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO github_credentials (id, user_id, account_type, github_id, login, avatar_url,
		                                 email, access_token, token_type, scopes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, account_type) DO UPDATE SET
		   github_id    = excluded.github_id,
		   login        = excluded.login,
		   avatar_url   = excluded.avatar_url,
		   email        = excluded.email,
		   access_token = excluded.access_token,
		   token_type   = excluded.token_type,
		   scopes       = excluded.scopes,
		   updated_at   = excluded.updated_at`,
		xid.New().String(), c.UserID, string(c.AccountType), c.GitHubID, c.Login, c.AvatarURL,
		c.Email, c.AccessToken, c.TokenType, c.Scopes, t, t,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting %s credential for %s: %w", c.AccountType, c.UserID, err)
	}

	stored, err := db.Get(ctx, c.UserID, c.AccountType)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// Get returns the credential in slot t. Returns apperror.ErrNotFound if the
// slot is empty.
func (db *CredentialDB) Get(ctx context.Context, userID string, t model.AccountType) (*model.Credential, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM github_credentials WHERE user_id = ? AND account_type = ?`,
		userID, string(t))
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound(string(t)+" credential", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting credential: %w", err)
	}
	return c, nil
}

func (db *CredentialDB) ListByUser(ctx context.Context, userID string) ([]model.Credential, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM github_credentials WHERE user_id = ? ORDER BY account_type`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing credentials: %w", err)
	}
	defer rows.Close()

	out := []model.Credential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning credential: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const credentialColumns = `id, user_id, account_type, github_id, login, avatar_url, email,
	access_token, token_type, scopes, created_at, updated_at`

func scanCredential(s scanner) (*model.Credential, error) {
	var (
		c  model.Credential
		at string
	)
	err := s.Scan(&c.ID, &c.UserID, &at, &c.GitHubID, &c.Login, &c.AvatarURL, &c.Email,
		&c.AccessToken, &c.TokenType, &c.Scopes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.AccountType = model.AccountType(at)
	return &c, nil
}

// InstallationDB is the GitHub App installations store.
type InstallationDB struct {
	conn *sql.DB
}

// Upsert inserts by InstallationID or reassigns an existing row to inst.UserID
// and refreshes its account. An empty AccountLogin or zero AccountID does not
// erase a value that is already known.
func (db *InstallationDB) Upsert(ctx context.Context, inst *model.Installation) error {
	t := now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO github_installations (id, user_id, installation_id, account_login, account_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (installation_id) DO UPDATE SET
		   user_id       = excluded.user_id,
		   account_login = CASE WHEN excluded.account_login <> '' THEN excluded.account_login ELSE account_login END,
		   account_id    = CASE WHEN excluded.account_id <> 0 THEN excluded.account_id ELSE account_id END,
		   updated_at    = excluded.updated_at`,
		xid.New().String(), inst.UserID, inst.InstallationID, inst.AccountLogin, inst.AccountID, t, t,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", inst.UserID)
		}
		return fmt.Errorf("sqlite: upserting installation %d: %w", inst.InstallationID, err)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+installationColumns+` FROM github_installations WHERE installation_id = ?`, inst.InstallationID)
	stored, err := scanInstallation(row)
	if err != nil {
		return fmt.Errorf("sqlite: reading installation %d: %w", inst.InstallationID, err)
	}
	*inst = *stored
	return nil
}

// UpdateAccount refreshes the account login and id of an installation. An
// empty login or a zero id keeps the stored value.
func (db *InstallationDB) UpdateAccount(ctx context.Context, installationID int64, login string, accountID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE github_installations SET
			account_login = CASE WHEN ? <> '' THEN ? ELSE account_login END,
			account_id = CASE WHEN ? <> 0 THEN ? ELSE account_id END,
			updated_at = ?
		 WHERE installation_id = ?`,
		login, login, accountID, accountID, now(), installationID)
	if err != nil {
		return fmt.Errorf("sqlite: updating installation %d: %w", installationID, err)
	}
	return requireAffected(res, "installation", strconv.FormatInt(installationID, 10))
}

func (db *InstallationDB) ListByUser(ctx context.Context, userID string) ([]model.Installation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+installationColumns+` FROM github_installations WHERE user_id = ?
		 ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing installations: %w", err)
	}
	defer rows.Close()

	out := []model.Installation{}
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning installation: %w", err)
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

func (db *InstallationDB) FirstForUser(ctx context.Context, userID string) (*model.Installation, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+installationColumns+` FROM github_installations WHERE user_id = ?
		 ORDER BY created_at, rowid LIMIT 1`, userID)
	inst, err := scanInstallation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("installation for user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting installation for %s: %w", userID, err)
	}
	return inst, nil
}

const installationColumns = `id, user_id, installation_id, account_login, account_id, created_at, updated_at`

func scanInstallation(s scanner) (*model.Installation, error) {
	var i model.Installation
	if err := s.Scan(&i.ID, &i.UserID, &i.InstallationID, &i.AccountLogin, &i.AccountID,
		&i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}
