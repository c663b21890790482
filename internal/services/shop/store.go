package shop

import (
	"context"
	"database/sql"
	"errors"
)

var ErrCredentialMissing = errors.New("shop has no platform access token")

// Shop is the per-merchant record. The access token is written by the
// out-of-scope OAuth install flow; this engine only reads it.
type Shop struct {
	Domain             string
	AccessToken        string
	Plan               string
	Locale             string
	NotificationsFrom  string
	NotifyWebhookURL   string
	NotifyWebhookToken string
}

// Template is a merchant-customized notification template row.
type Template struct {
	Subject string
	Body    string
	Enabled bool
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Get(ctx context.Context, domain string) (*Shop, error) {
	const q = `
	SELECT domain, access_token, plan, locale, notifications_from,
	       notify_webhook_url, notify_webhook_token
	  FROM shops WHERE domain = $1`
	sh := &Shop{}
	err := s.db.QueryRowContext(ctx, q, domain).Scan(&sh.Domain, &sh.AccessToken,
		&sh.Plan, &sh.Locale, &sh.NotificationsFrom, &sh.NotifyWebhookURL, &sh.NotifyWebhookToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialMissing
	}
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// Credential returns the platform token for a shop, or
// ErrCredentialMissing when the shop is unknown or the token is empty.
func (s *Store) Credential(ctx context.Context, domain string) (string, error) {
	sh, err := s.Get(ctx, domain)
	if err != nil {
		return "", err
	}
	if sh.AccessToken == "" {
		return "", ErrCredentialMissing
	}
	return sh.AccessToken, nil
}

// ListWithCredentials returns the domains the fulfillment sweep should
// visit: shops holding a usable token.
func (s *Store) ListWithCredentials(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM shops WHERE access_token <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Template fetches the merchant override for a notification type.
// (nil, nil) means no override exists.
func (s *Store) Template(ctx context.Context, domain, typ string) (*Template, error) {
	const q = `SELECT subject, body, enabled FROM notification_templates
	            WHERE shop_domain = $1 AND type = $2`
	t := &Template{}
	err := s.db.QueryRowContext(ctx, q, domain, typ).Scan(&t.Subject, &t.Body, &t.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecordBid bumps the bidder's aggregates. Best-effort caller side.
func (s *Store) RecordBid(ctx context.Context, domain, bidder string, amount float64) error {
	const q = `
	INSERT INTO bidder_stats (shop_domain, bidder, total_bids, total_amount, wins)
	     VALUES ($1, $2, 1, $3, 0)
	ON CONFLICT (shop_domain, bidder) DO UPDATE
	        SET total_bids   = bidder_stats.total_bids + 1,
	            total_amount = bidder_stats.total_amount + EXCLUDED.total_amount`
	_, err := s.db.ExecContext(ctx, q, domain, bidder, amount)
	return err
}

// RecordWin bumps the winner's win counter. Best-effort caller side.
func (s *Store) RecordWin(ctx context.Context, domain, bidder string) error {
	const q = `
	INSERT INTO bidder_stats (shop_domain, bidder, total_bids, total_amount, wins)
	     VALUES ($1, $2, 0, 0, 1)
	ON CONFLICT (shop_domain, bidder) DO UPDATE
	        SET wins = bidder_stats.wins + 1`
	_, err := s.db.ExecContext(ctx, q, domain, bidder)
	return err
}
