package repo

import (
	"context"
	"encoding/json"
	"errors"

	"ocpisync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStaleTransaction means another writer updated the transaction's OCPI
// data since it was read; the caller must re-read and retry or give up.
var ErrStaleTransaction = errors.New("transaction version conflict")

type TransactionsRepo struct{ db *pgxpool.Pool }

func NewTransactionsRepo(db *pgxpool.Pool) *TransactionsRepo { return &TransactionsRepo{db: db} }

const transactionCols = `transaction_id, charge_box_id, connector_id, tag_id, authorization_id,
	started_at, stopped_at, meter_start_wh, total_consumption_wh, total_duration_secs,
	total_parking_secs, price::float8, price_unit, ocpi_data, version`

func (r *TransactionsRepo) GetByID(ctx context.Context, id int) (*models.Transaction, error) {
	row := r.db.QueryRow(ctx, `select `+transactionCols+` from transactions where transaction_id=$1`, id)
	return scanTransaction(row)
}

// SaveOCPIData writes the transaction's OCPI data guarded by the version it
// was read at. On success the in-memory version is bumped to match the row.
func (r *TransactionsRepo) SaveOCPIData(ctx context.Context, t *models.Transaction) error {
	b, err := json.Marshal(t.OCPI)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		update transactions set ocpi_data=$2, version=version+1, updated_at=now()
		where transaction_id=$1 and version=$3
	`, t.ID, b, t.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransaction
	}
	t.Version++
	return nil
}

func (r *TransactionsRepo) ListMeterValues(ctx context.Context, transactionID int) ([]models.MeterValue, error) {
	rows, err := r.db.Query(ctx, `
		select transaction_id, ts, value_wh
		from meter_values where transaction_id=$1
		order by ts asc
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MeterValue
	for rows.Next() {
		var m models.MeterValue
		if err := rows.Scan(&m.TransactionID, &m.Timestamp, &m.ValueWh); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListToCheckSessions returns transactions holding a session that has not
// been verified against the remote system yet. Unstopped transactions are
// included; the sweep itself skips them so they still show up in totals.
func (r *TransactionsRepo) ListToCheckSessions(ctx context.Context, limit int) ([]models.Transaction, error) {
	return r.listToCheck(ctx, `ocpi_data->'session' is not null and ocpi_data->>'sessionCheckedOn' is null`, limit)
}

func (r *TransactionsRepo) ListToCheckCdrs(ctx context.Context, limit int) ([]models.Transaction, error) {
	return r.listToCheck(ctx, `ocpi_data->'cdr' is not null and ocpi_data->>'cdrCheckedOn' is null`, limit)
}

func (r *TransactionsRepo) listToCheck(ctx context.Context, cond string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	rows, err := r.db.Query(ctx, `
		select `+transactionCols+` from transactions
		where `+cond+`
		order by started_at asc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	var ocpiData []byte
	if err := row.Scan(&t.ID, &t.ChargeBoxID, &t.ConnectorID, &t.TagID, &t.AuthorizationID,
		&t.StartedAt, &t.StoppedAt, &t.MeterStartWh, &t.TotalConsumptionWh, &t.TotalDurationSecs,
		&t.TotalParkingSecs, &t.Price, &t.PriceUnit, &ocpiData, &t.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(ocpiData) > 0 {
		var d models.TransactionOCPIData
		if err := json.Unmarshal(ocpiData, &d); err != nil {
			return nil, err
		}
		t.OCPI = &d
	}
	return &t, nil
}
