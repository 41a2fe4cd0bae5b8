package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
	"github.com/c0deZ3R0/productsync/synckit"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queries implements synckit.StoreTx on top of a transaction.
type queries struct {
	q querier
}

var _ synckit.StoreTx = queries{}

const productColumns = `id, image, price, name, type, tax, local_thumb, is_pending`

func (x queries) all(ctx context.Context) ([]synckit.ProductRecord, error) {
	rows, err := x.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id DESC`)
	if err != nil {
		return nil, syncErrors.WrapStorage(err, opAll, component)
	}
	defer rows.Close()

	records, err := scanProducts(rows)
	return records, syncErrors.WrapStorage(err, opAll, component)
}

func (x queries) GetAllPending(ctx context.Context) ([]synckit.ProductRecord, error) {
	rows, err := x.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE is_pending = 1 ORDER BY id DESC`)
	if err != nil {
		return nil, syncErrors.WrapStorage(err, opGetAllPending, component)
	}
	defer rows.Close()

	records, err := scanProducts(rows)
	return records, syncErrors.WrapStorage(err, opGetAllPending, component)
}

func (x queries) ClearNonPending(ctx context.Context) error {
	_, err := x.q.ExecContext(ctx, `DELETE FROM products WHERE is_pending = 0`)
	return syncErrors.WrapStorage(err, opClearNonPending, component)
}

func (x queries) Insert(ctx context.Context, r synckit.ProductRecord) (int64, error) {
	res, err := x.q.ExecContext(ctx,
		`INSERT INTO products (image, price, name, type, tax, local_thumb, is_pending) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(r.Image), r.Price.String(), r.Name, string(r.Type), r.Tax.String(), nullString(r.LocalThumbnail), r.IsPending)
	if err != nil {
		return 0, syncErrors.WrapStorage(err, opInsert, component)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, syncErrors.WrapStorage(err, opInsert, component)
	}
	return id, nil
}

func (x queries) InsertAll(ctx context.Context, records []synckit.ProductRecord) error {
	for _, r := range records {
		if _, err := x.Insert(ctx, r); err != nil {
			return syncErrors.WrapStorage(err, opInsertAll, component)
		}
	}
	return nil
}

// DeleteByID removes a product. Deleting a missing id is not an error.
func (x queries) DeleteByID(ctx context.Context, id int64) error {
	_, err := x.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return syncErrors.WrapStorage(err, opDeleteByID, component)
}

func (x queries) PendingAll(ctx context.Context) ([]synckit.PendingUpload, error) {
	rows, err := x.q.QueryContext(ctx,
		`SELECT id, name, type, price, tax, image_path, created_at, local_product_id
		 FROM pending_uploads ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, syncErrors.WrapStorage(err, opPendingAll, component)
	}
	defer rows.Close()

	var uploads []synckit.PendingUpload
	for rows.Next() {
		var (
			u         synckit.PendingUpload
			imagePath sql.NullString
			createdAt int64
			localID   sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Type, &u.Price, &u.Tax, &imagePath, &createdAt, &localID); err != nil {
			return nil, syncErrors.WrapStorage(fmt.Errorf("failed to scan pending row: %w", err), opPendingAll, component)
		}
		u.ImagePath = imagePath.String
		u.CreatedAt = time.Unix(0, createdAt).UTC()
		if localID.Valid {
			id := localID.Int64
			u.LocalProductID = &id
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapStorage(fmt.Errorf("error during row iteration: %w", err), opPendingAll, component)
	}
	return uploads, nil
}

func (x queries) PendingInsert(ctx context.Context, u synckit.PendingUpload) (int64, error) {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var localID sql.NullInt64
	if u.LocalProductID != nil {
		localID = sql.NullInt64{Int64: *u.LocalProductID, Valid: true}
	}

	res, err := x.q.ExecContext(ctx,
		`INSERT INTO pending_uploads (name, type, price, tax, image_path, created_at, local_product_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Type, u.Price, u.Tax, nullString(u.ImagePath), createdAt.UnixNano(), localID)
	if err != nil {
		return 0, syncErrors.WrapStorage(err, opPendingInsert, component)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, syncErrors.WrapStorage(err, opPendingInsert, component)
	}
	return id, nil
}

func (x queries) PendingDelete(ctx context.Context, id int64) error {
	_, err := x.q.ExecContext(ctx, `DELETE FROM pending_uploads WHERE id = ?`, id)
	return syncErrors.WrapStorage(err, opPendingDelete, component)
}

func scanProducts(rows *sql.Rows) ([]synckit.ProductRecord, error) {
	records := []synckit.ProductRecord{}
	for rows.Next() {
		var (
			r          synckit.ProductRecord
			image      sql.NullString
			localThumb sql.NullString
			price, tax string
			typ        string
		)
		if err := rows.Scan(&r.ID, &image, &price, &r.Name, &typ, &tax, &localThumb, &r.IsPending); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}

		var err error
		if r.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %d: bad price %q: %w", r.ID, price, err)
		}
		if r.Tax, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("product %d: bad tax %q: %w", r.ID, tax, err)
		}
		r.Image = image.String
		r.LocalThumbnail = localThumb.String
		r.Type = synckit.ProductType(typ)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
