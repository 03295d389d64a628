package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"property-workflow/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an already opened handle.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const propertyColumns = `
	id, property_id, submitted_by, agent_name, agent_code, agent_phone,
	state, city, street, pincode, COALESCE(google_code, ''), entrance_direction,
	owner_name, owner_email, owner_mobile, location, category, property_size,
	dimensions, ownership_type, sale_type, approval_type, address, entrance_facing,
	seller_price, neighbourhood_pricing, asking_price, final_price, documents,
	status, team_approvals, rejected, rejected_by,
	submission_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (domain.Property, error) {
	var (
		p          domain.Property
		documents  []byte
		status     string
		approvals  []byte
		rejectedBy sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.PropertyID, &p.SubmittedBy, &p.AgentName, &p.AgentCode, &p.AgentPhone,
		&p.State, &p.City, &p.Street, &p.Pincode, &p.GoogleCode, &p.EntranceDirection,
		&p.OwnerName, &p.OwnerEmail, &p.OwnerMobile, &p.Location, &p.Category, &p.PropertySize,
		&p.Dimensions, &p.OwnershipType, &p.SaleType, &p.ApprovalType, &p.Address, &p.EntranceFacing,
		&p.SellerPrice, &p.NeighbourhoodPricing, &p.AskingPrice, &p.FinalPrice, &documents,
		&status, &approvals, &p.Workflow.Rejected, &rejectedBy,
		&p.SubmissionDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Property{}, err
	}
	p.Workflow = decodeState(status, approvals, p.Workflow.Rejected, rejectedBy)
	p.Documents = decodeDocuments(documents)
	return p, nil
}

// decodeState rebuilds an ApprovalState from its columns. An unknown status
// name reads as StageUnknown, which sits before every ordered stage.
func decodeState(status string, approvals []byte, rejected bool, rejectedBy sql.NullString) domain.ApprovalState {
	stage, err := domain.ParseStage(status)
	if err != nil {
		stage = domain.StageUnknown
	}
	return domain.ApprovalState{
		Status:     stage,
		Approvals:  domain.DecodeApprovals(approvals),
		Rejected:   rejected,
		RejectedBy: rejectedBy.String,
	}
}

func decodeDocuments(raw []byte) map[domain.DocumentKind]string {
	out := map[domain.DocumentKind]string{}
	if len(raw) == 0 {
		return out
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for k, v := range m {
		out[domain.DocumentKind(k)] = v
	}
	return out
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}

func (s *PostgresStore) CreateProperty(ctx context.Context, p domain.Property) (int64, error) {
	documents, err := json.Marshal(p.Documents)
	if err != nil {
		return 0, storeErr("encode documents", err)
	}
	if p.Documents == nil {
		documents = []byte("{}")
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO properties (
			property_id, submitted_by, agent_name, agent_code, agent_phone,
			state, city, street, pincode, google_code, entrance_direction,
			owner_name, owner_email, owner_mobile, location, category, property_size,
			dimensions, ownership_type, sale_type, approval_type, address, entrance_facing,
			seller_price, neighbourhood_pricing, asking_price, final_price, documents,
			status, team_approvals, rejected, rejected_by, submission_date
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28::jsonb, $29, $30::jsonb, $31, $32, $33
		)
		RETURNING id
	`,
		p.PropertyID, p.SubmittedBy, p.AgentName, p.AgentCode, p.AgentPhone,
		p.State, p.City, p.Street, p.Pincode, nullString(p.GoogleCode), p.EntranceDirection,
		p.OwnerName, p.OwnerEmail, p.OwnerMobile, p.Location, p.Category, p.PropertySize,
		p.Dimensions, p.OwnershipType, p.SaleType, p.ApprovalType, p.Address, p.EntranceFacing,
		p.SellerPrice, p.NeighbourhoodPricing, p.AskingPrice, p.FinalPrice, string(documents),
		p.Workflow.Status.String(), string(domain.EncodeApprovals(p.Workflow.Approvals)),
		p.Workflow.Rejected, nullString(p.Workflow.RejectedBy), p.SubmissionDate,
	).Scan(&id)
	if err != nil {
		return 0, storeErr("insert property", err)
	}
	return id, nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, id int64) (domain.Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Property{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Property{}, storeErr("get property", err)
	}
	return p, nil
}

// ListProperties returns properties newest first. Rejected ones are left out
// unless includeRejected is set.
func (s *PostgresStore) ListProperties(ctx context.Context, includeRejected bool) ([]domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties`
	if !includeRejected {
		query += ` WHERE rejected = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return s.queryProperties(ctx, query)
}

// ListPropertiesByStatus returns the properties currently at any of statuses.
func (s *PostgresStore) ListPropertiesByStatus(ctx context.Context, statuses ...domain.Stage) ([]domain.Property, error) {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.String())
	}
	return s.queryProperties(ctx, `SELECT `+propertyColumns+`
		FROM properties
		WHERE status = ANY($1)
		ORDER BY created_at DESC, id DESC`, pq.Array(names))
}

func (s *PostgresStore) queryProperties(ctx context.Context, query string, args ...any) ([]domain.Property, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list properties", err)
	}
	defer rows.Close()

	items := make([]domain.Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, storeErr("scan property", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list properties", err)
	}
	return items, nil
}

func (s *PostgresStore) ListPropertyIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM properties ORDER BY id ASC`)
	if err != nil {
		return nil, storeErr("list property ids", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan property id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list property ids", err)
	}
	return ids, nil
}

// UpdateApprovalState locks the property row, hands its current state to fn and
// persists the result when it differs. Concurrent calls for one id queue on
// the row lock. The returned bool reports whether a write happened.
func (s *PostgresStore) UpdateApprovalState(ctx context.Context, id int64, fn domain.Transition) (domain.ApprovalState, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ApprovalState{}, false, storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status     string
		approvals  []byte
		rejected   bool
		rejectedBy sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, team_approvals, rejected, rejected_by
		FROM properties
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status, &approvals, &rejected, &rejectedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ApprovalState{}, false, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.ApprovalState{}, false, storeErr("load approval state", err)
	}

	current := decodeState(status, approvals, rejected, rejectedBy)
	next, err := fn(current)
	if err != nil {
		return current, false, err
	}
	if next == current {
		return current, false, nil
	}

	// A transition that leaves the status alone keeps the stored name, even
	// one that does not parse.
	statusName := next.Status.String()
	if next.Status == current.Status {
		statusName = status
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE properties
		SET status = $2,
		    team_approvals = $3::jsonb,
		    rejected = $4,
		    rejected_by = $5,
		    updated_at = NOW()
		WHERE id = $1
	`, id, statusName, string(domain.EncodeApprovals(next.Approvals)), next.Rejected, nullString(next.RejectedBy))
	if err != nil {
		return current, false, storeErr("update approval state", err)
	}
	if err := tx.Commit(); err != nil {
		return current, false, storeErr("commit approval state", err)
	}
	return next, true, nil
}

// SetDocumentReference records ref as the property's document of the given kind.
func (s *PostgresStore) SetDocumentReference(ctx context.Context, id int64, kind domain.DocumentKind, ref string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET documents = COALESCE(documents, '{}'::jsonb) || jsonb_build_object($2::text, $3::text),
		    updated_at = NOW()
		WHERE id = $1
	`, id, string(kind), ref)
	if err != nil {
		return storeErr("set document reference", err)
	}
	return requireAffected(res, id)
}

func (s *PostgresStore) DeleteProperty(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete property", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	return nil
}
