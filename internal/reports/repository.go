package reports

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/lib/pq"

	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/metrics"
)

// ErrStoreRejected marks a write the database refused on its merits
// (constraint or data exception). Retrying it cannot succeed.
var ErrStoreRejected = pkgerrors.NewError("STORE_REJECTED", "report rejected by the store", http.StatusUnprocessableEntity).AsFatal()

type Repository interface {
	// Create inserts the report unless one with the same EnvelopeID exists.
	// created is false when the existing row is returned instead.
	Create(ctx context.Context, r NewReport) (report Report, created bool, err error)
	List(ctx context.Context) ([]Report, error)
	Get(ctx context.Context, id int64) (Report, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (Report, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reportColumns = `id, envelope_id, producto_nombre, supermercado_reportado,
	COALESCE(precio_encontrado, 0)::float8, COALESCE(descripcion, ''), estado, "createdAt", "updatedAt"`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (Report, error) {
	var r Report
	err := row.Scan(
		&r.ID,
		&r.EnvelopeID,
		&r.ProductoNombre,
		&r.SupermercadoReportado,
		&r.PrecioEncontrado,
		&r.Descripcion,
		&r.Estado,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (r *PostgresRepository) Create(ctx context.Context, in NewReport) (Report, bool, error) {
	start := time.Now()

	query := `
		INSERT INTO reportes_inconsistencia
			(envelope_id, producto_nombre, supermercado_reportado, precio_encontrado, descripcion, estado)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT (envelope_id) DO NOTHING
		RETURNING ` + reportColumns

	report, err := scanReport(r.db.QueryRowContext(ctx, query,
		in.EnvelopeID, in.Producto, in.Supermercado, in.Precio, in.Descripcion, StatusPending))
	if err == nil {
		metrics.ObserveDatabaseQuery("insert_report", nil, time.Since(start))
		return report, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveDatabaseQuery("insert_report", err, time.Since(start))
		return Report{}, false, classify(err)
	}

	existing, err := scanReport(r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reportes_inconsistencia WHERE envelope_id = $1`, in.EnvelopeID))
	metrics.ObserveDatabaseQuery("insert_report", err, time.Since(start))
	if err != nil {
		return Report{}, false, classify(err)
	}
	return existing, false, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Report, error) {
	start := time.Now()

	query := `
		SELECT ` + reportColumns + `
		FROM reportes_inconsistencia
		ORDER BY estado ASC, "createdAt" DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		metrics.ObserveDatabaseQuery("list_reports", err, time.Since(start))
		return nil, classify(err)
	}
	defer rows.Close()

	reports := make([]Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			metrics.ObserveDatabaseQuery("list_reports", err, time.Since(start))
			return nil, classify(err)
		}
		reports = append(reports, report)
	}

	err = rows.Err()
	metrics.ObserveDatabaseQuery("list_reports", err, time.Since(start))
	if err != nil {
		return nil, classify(err)
	}
	return reports, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Report, error) {
	start := time.Now()

	report, err := scanReport(r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reportes_inconsistencia WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveDatabaseQuery("get_report", nil, time.Since(start))
		return Report{}, ErrReportNotFound.WithDetail("id", id)
	}
	metrics.ObserveDatabaseQuery("get_report", err, time.Since(start))
	if err != nil {
		return Report{}, classify(err)
	}
	return report, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) (Report, error) {
	start := time.Now()

	query := `
		UPDATE reportes_inconsistencia
		SET estado = $1, "updatedAt" = NOW()
		WHERE id = $2
		RETURNING ` + reportColumns

	report, err := scanReport(r.db.QueryRowContext(ctx, query, status, id))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveDatabaseQuery("update_report_status", nil, time.Since(start))
		return Report{}, ErrReportNotFound.WithDetail("id", id)
	}
	metrics.ObserveDatabaseQuery("update_report_status", err, time.Since(start))
	if err != nil {
		return Report{}, classify(err)
	}
	return report, nil
}

// classify sorts database errors into the ones worth retrying (the store
// was unreachable or busy) and the ones that will fail the same way again.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			return ErrStoreRejected.WithCause(err).WithDetail("sqlstate", string(pqErr.Code))
		case "08", "40", "53", "57":
			return pkgerrors.ErrServiceUnavailable.WithCause(err).WithDetail("sqlstate", string(pqErr.Code))
		}
		return pkgerrors.ErrInternal.WithCause(err).WithDetail("sqlstate", string(pqErr.Code))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.ErrTimeout.WithCause(err).AsRetryable()
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return pkgerrors.ErrServiceUnavailable.WithCause(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return pkgerrors.ErrServiceUnavailable.WithCause(err)
	}

	return pkgerrors.ErrInternal.WithCause(err)
}
