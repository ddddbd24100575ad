package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/tanpawarit/loan-assistant/agent/contract"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
}

type customerRow struct {
	bun.BaseModel `bun:"table:registered_customers"`

	Phone            string    `bun:"phone,pk"`
	Name             string    `bun:"name,notnull"`
	Salary           *int64    `bun:"salary"`
	CreditScore      *int64    `bun:"credit_score"`
	PreapprovedLimit int64     `bun:"preapproved_limit,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

type guestRow struct {
	bun.BaseModel `bun:"table:guests"`

	ID               string     `bun:"id,pk"`
	Name             string     `bun:"name,notnull"`
	Salary           *int64     `bun:"salary"`
	CreditScore      *int64     `bun:"credit_score"`
	PreapprovedLimit int64      `bun:"preapproved_limit,notnull"`
	Approved         bool       `bun:"approved,notnull,default:false"`
	AssociatedPhone  *string    `bun:"associated_phone"`
	AssociatedAt     *time.Time `bun:"associated_at"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
}

func (r *customerRow) profile() *contract.Profile {
	return &contract.Profile{
		Name:             r.Name,
		Salary:           r.Salary,
		CreditScore:      r.CreditScore,
		PreapprovedLimit: r.PreapprovedLimit,
	}
}

func (r *guestRow) guest() *Guest {
	g := &Guest{
		ID: r.ID,
		Profile: &contract.Profile{
			Name:             r.Name,
			Salary:           r.Salary,
			CreditScore:      r.CreditScore,
			PreapprovedLimit: r.PreapprovedLimit,
		},
		CreatedAt: r.CreatedAt,
		Approved:  r.Approved,
	}
	if r.AssociatedPhone != nil {
		g.AssociatedPhone = *r.AssociatedPhone
		g.Profile.AssociatedPhone = *r.AssociatedPhone
	}
	if r.AssociatedAt != nil {
		g.AssociatedAt = *r.AssociatedAt
	}
	return g
}

// PostgresStore persists identities in PostgreSQL. Phone writes take a
// transaction-scoped advisory lock on the phone, and a partial unique index
// keeps approved guest phones distinct.
type PostgresStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	connOpts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		connOpts = append(connOpts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(connOpts...))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewPostgresStoreFromDB(bun.NewDB(sqldb, pgdialect.New())), nil
}

func NewPostgresStoreFromDB(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the identity tables and indexes when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*customerRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create registered_customers: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*guestRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create guests: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*guestRow)(nil)).
		Index("guests_associated_phone_idx").
		Column("associated_phone").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create guests phone index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE UNIQUE INDEX IF NOT EXISTS guests_approved_phone_key ON guests (associated_phone) WHERE approved"); err != nil {
		return fmt.Errorf("create approved phone index: %w", err)
	}
	return nil
}

// Seed upserts registered customers, typically from LoadSeed.
func (s *PostgresStore) Seed(ctx context.Context, customers map[string]*contract.Profile) error {
	for phone, profile := range customers {
		if err := s.UpsertRegisteredCustomer(ctx, phone, profile); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) LookupCustomerByPhone(ctx context.Context, phone string) (*contract.Profile, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	var row customerRow
	err = s.db.NewSelect().Model(&row).Where("phone = ?", phone).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}
	return row.profile(), nil
}

func (s *PostgresStore) LookupGuest(ctx context.Context, guestID string) (*Guest, error) {
	if !validGuestID(guestID) {
		return nil, ErrNotFound
	}

	var row guestRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", guestID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup guest: %w", err)
	}
	return row.guest(), nil
}

func (s *PostgresStore) FindGuestByPhone(ctx context.Context, phone string) (*Guest, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	var row guestRow
	err = s.db.NewSelect().
		Model(&row).
		Where("associated_phone = ?", phone).
		OrderExpr("approved DESC, associated_at DESC NULLS LAST").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find guest by phone: %w", err)
	}
	return row.guest(), nil
}

func (s *PostgresStore) CreateGuest(ctx context.Context, profile *contract.Profile) (string, error) {
	if profile == nil {
		return "", errors.New("guest profile is required")
	}

	row := guestRow{
		ID:               newGuestID(),
		Name:             profile.Name,
		Salary:           profile.Salary,
		CreditScore:      profile.CreditScore,
		PreapprovedLimit: profile.PreapprovedLimit,
		CreatedAt:        s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert guest: %w", err)
	}
	return row.ID, nil
}

func (s *PostgresStore) AssociatePhone(ctx context.Context, guestID, phone string) (bool, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return false, err
	}

	ok := false
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPhone(ctx, tx, phone); err != nil {
			return err
		}

		var guest guestRow
		err := tx.NewSelect().Model(&guest).Where("id = ?", guestID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load guest: %w", err)
		}
		if guest.AssociatedPhone != nil && *guest.AssociatedPhone == phone {
			ok = true
			return nil
		}

		registered, err := tx.NewSelect().Model((*customerRow)(nil)).Where("phone = ?", phone).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check registered phone: %w", err)
		}
		if registered {
			return nil
		}
		held, err := tx.NewSelect().
			Model((*guestRow)(nil)).
			Where("associated_phone = ?", phone).
			Where("id <> ?", guestID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check phone holder: %w", err)
		}
		if held {
			return nil
		}

		if err := bindPhone(ctx, tx, guestID, phone, s.now().UTC()); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) MarkApproved(ctx context.Context, guestID, phone string) (bool, error) {
	phone = strings.TrimSpace(phone)

	ok := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if phone != "" {
			if err := lockPhone(ctx, tx, phone); err != nil {
				return err
			}
		}

		var guest guestRow
		err := tx.NewSelect().Model(&guest).Where("id = ?", guestID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load guest: %w", err)
		}

		if phone != "" {
			taken, err := tx.NewSelect().
				Model((*guestRow)(nil)).
				Where("associated_phone = ?", phone).
				Where("approved").
				Where("id <> ?", guestID).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("check approved holder: %w", err)
			}
			if taken {
				return nil
			}
			if guest.AssociatedPhone == nil || *guest.AssociatedPhone != phone {
				if err := bindPhone(ctx, tx, guestID, phone, s.now().UTC()); err != nil {
					return err
				}
			}
		}

		if _, err := tx.NewUpdate().
			Model((*guestRow)(nil)).
			Set("approved = TRUE").
			Where("id = ?", guestID).
			Exec(ctx); err != nil {
			return fmt.Errorf("mark guest approved: %w", err)
		}
		ok = true
		return nil
	})
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) UpsertRegisteredCustomer(ctx context.Context, phone string, profile *contract.Profile) error {
	phone, err := normalizePhone(phone)
	if err != nil {
		return err
	}
	if profile == nil {
		return errors.New("customer profile is required")
	}

	row := customerRow{
		Phone:            phone,
		Name:             profile.Name,
		Salary:           profile.Salary,
		CreditScore:      profile.CreditScore,
		PreapprovedLimit: profile.PreapprovedLimit,
		UpdatedAt:        s.now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (phone) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("salary = EXCLUDED.salary").
		Set("credit_score = EXCLUDED.credit_score").
		Set("preapproved_limit = EXCLUDED.preapproved_limit").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func lockPhone(ctx context.Context, tx bun.Tx, phone string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", phone); err != nil {
		return fmt.Errorf("lock phone: %w", err)
	}
	return nil
}

func bindPhone(ctx context.Context, tx bun.Tx, guestID, phone string, at time.Time) error {
	if _, err := tx.NewUpdate().
		Model((*guestRow)(nil)).
		Set("associated_phone = ?", phone).
		Set("associated_at = ?", at).
		Where("id = ?", guestID).
		Exec(ctx); err != nil {
		return fmt.Errorf("bind guest phone: %w", err)
	}
	return nil
}
