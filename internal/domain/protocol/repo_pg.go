package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetfluid/vetfluid/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type protocolRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &protocolRepoPG{pool: pool} }

func (r *protocolRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const protocolCols = `id, name, title, description, potassium_tiers, chloride_threshold,
	calcium_policy, hhs_trigger, hhs_osmolality_limit, hhs_glucose_limit, active, created_at, updated_at`

func (r *protocolRepoPG) scanProtocol(row pgx.Row) (*Protocol, error) {
	var p Protocol
	var tiers []byte
	err := row.Scan(&p.ID, &p.Name, &p.Title, &p.Description, &tiers, &p.ChlorideThreshold,
		&p.CalciumPolicy, &p.HHSTrigger, &p.HHSOsmolalityLimit, &p.HHSGlucoseLimit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tiers, &p.PotassiumTiers); err != nil {
		return nil, fmt.Errorf("decode potassium_tiers for %s: %w", p.Name, err)
	}
	return &p, nil
}

func (r *protocolRepoPG) Create(ctx context.Context, p *Protocol) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	tiers, err := json.Marshal(p.PotassiumTiers)
	if err != nil {
		return fmt.Errorf("encode potassium_tiers: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dosing_protocol (id, name, title, description, potassium_tiers, chloride_threshold,
			calcium_policy, hhs_trigger, hhs_osmolality_limit, hhs_glucose_limit, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Title, p.Description, tiers, p.ChlorideThreshold,
		p.CalciumPolicy, p.HHSTrigger, p.HHSOsmolalityLimit, p.HHSGlucoseLimit, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return uniqueViolation(err, p.Name)
}

// uniqueViolation turns a duplicate protocol name into ErrConflict.
func uniqueViolation(err error, name string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: protocol %q already exists", ErrConflict, name)
	}
	return err
}

func (r *protocolRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return r.scanProtocol(r.conn(ctx).QueryRow(ctx, `SELECT `+protocolCols+` FROM dosing_protocol WHERE id = $1`, id))
}

func (r *protocolRepoPG) GetByName(ctx context.Context, name string) (*Protocol, error) {
	return r.scanProtocol(r.conn(ctx).QueryRow(ctx, `SELECT `+protocolCols+` FROM dosing_protocol WHERE name = $1`, name))
}

func (r *protocolRepoPG) Update(ctx context.Context, p *Protocol) error {
	tiers, err := json.Marshal(p.PotassiumTiers)
	if err != nil {
		return fmt.Errorf("encode potassium_tiers: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dosing_protocol SET name=$2, title=$3, description=$4, potassium_tiers=$5,
			chloride_threshold=$6, calcium_policy=$7, hhs_trigger=$8, hhs_osmolality_limit=$9,
			hhs_glucose_limit=$10, active=$11, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Title, p.Description, tiers,
		p.ChlorideThreshold, p.CalciumPolicy, p.HHSTrigger, p.HHSOsmolalityLimit,
		p.HHSGlucoseLimit, p.Active)
	if err != nil {
		return uniqueViolation(err, p.Name)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *protocolRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM dosing_protocol WHERE id = $1`, id)
	return err
}

func (r *protocolRepoPG) List(ctx context.Context, limit, offset int) ([]*Protocol, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM dosing_protocol`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+protocolCols+` FROM dosing_protocol ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Protocol
	for rows.Next() {
		p, err := r.scanProtocol(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
