package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"propnest/internal/platform/postgres"
	propmodels "propnest/internal/property/models"
	"propnest/internal/verification/models"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/sentinel"
	"propnest/pkg/platform/tx"
)

// PostgresStore persists verification records in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `property_id, asset_id, geo_verified, geo_lat, geo_lng, geo_source, geo_verified_at,
	title_clear, encumbrance_free, litigation_status, registration_number,
	risk_score, risk_level, compliance_score,
	verification_score, trust_score, investment_score, overall_score, created_at, updated_at`

// Upsert is one conditional write keyed on property_id. asset_id and
// created_at are only written by the insert branch, so concurrent callers
// converge on a single record with the first identifier. inserted reports
// which branch ran: xmax is zero only on a freshly inserted row version.
func (s *PostgresStore) Upsert(ctx context.Context, rec *models.Record) (*models.Record, bool, error) {
	var lat, lng sql.NullFloat64
	if rec.Geo.Point != nil {
		lat = sql.NullFloat64{Float64: rec.Geo.Point.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Geo.Point.Lng, Valid: true}
	}
	var verifiedAt sql.NullTime
	if rec.Geo.VerifiedAt != nil {
		verifiedAt = sql.NullTime{Time: *rec.Geo.VerifiedAt, Valid: true}
	}

	query := `
		INSERT INTO verification_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (property_id) DO UPDATE SET
			geo_verified = EXCLUDED.geo_verified,
			geo_lat = EXCLUDED.geo_lat,
			geo_lng = EXCLUDED.geo_lng,
			geo_source = EXCLUDED.geo_source,
			geo_verified_at = EXCLUDED.geo_verified_at,
			title_clear = EXCLUDED.title_clear,
			encumbrance_free = EXCLUDED.encumbrance_free,
			litigation_status = EXCLUDED.litigation_status,
			registration_number = EXCLUDED.registration_number,
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			compliance_score = EXCLUDED.compliance_score,
			verification_score = EXCLUDED.verification_score,
			trust_score = EXCLUDED.trust_score,
			investment_score = EXCLUDED.investment_score,
			overall_score = EXCLUDED.overall_score,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + recordColumns + `, (xmax = 0) AS inserted`
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(rec.PropertyID), rec.AssetID, rec.Geo.Verified, lat, lng, rec.Geo.Source, verifiedAt,
		rec.Legal.TitleClear, rec.Legal.EncumbranceFree, string(rec.Legal.LitigationStatus), rec.Legal.RegistrationNumber,
		rec.Legal.RiskScore, string(rec.Legal.RiskLevel), rec.Legal.ComplianceScore,
		rec.VerificationScore, rec.TrustScore, rec.InvestmentScore, rec.OverallScore, rec.CreatedAt, rec.UpdatedAt,
	)
	var inserted bool
	stored, err := scanRecord(row, &inserted)
	if err != nil {
		if postgres.IsTransient(err) {
			return nil, false, fmt.Errorf("%w: upsert verification record: %v", sentinel.ErrUnavailable, err)
		}
		return nil, false, fmt.Errorf("upsert verification record: %w", err)
	}
	return stored, inserted, nil
}

func (s *PostgresStore) FindByPropertyID(ctx context.Context, propertyID id.PropertyID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM verification_records WHERE property_id = $1`
	rec, err := scanRecord(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(propertyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification record: %w", err)
	}
	return rec, nil
}

// DeleteByPropertyID is normally a no-op: the foreign key cascades when the
// property row goes.
func (s *PostgresStore) DeleteByPropertyID(ctx context.Context, propertyID id.PropertyID) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM verification_records WHERE property_id = $1`, uuid.UUID(propertyID))
	if err != nil {
		return fmt.Errorf("delete verification record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads recordColumns followed by any extra columns into extra.
func scanRecord(row rowScanner, extra ...any) (*models.Record, error) {
	var (
		rec        models.Record
		propertyID uuid.UUID
		lat, lng   sql.NullFloat64
		verifiedAt sql.NullTime
		litigation string
		riskLevel  string
	)
	dest := []any{
		&propertyID, &rec.AssetID, &rec.Geo.Verified, &lat, &lng, &rec.Geo.Source, &verifiedAt,
		&rec.Legal.TitleClear, &rec.Legal.EncumbranceFree, &litigation, &rec.Legal.RegistrationNumber,
		&rec.Legal.RiskScore, &riskLevel, &rec.Legal.ComplianceScore,
		&rec.VerificationScore, &rec.TrustScore, &rec.InvestmentScore, &rec.OverallScore, &rec.CreatedAt, &rec.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return nil, err
	}
	rec.PropertyID = id.PropertyID(propertyID)
	rec.Legal.LitigationStatus = propmodels.LitigationStatus(litigation)
	rec.Legal.RiskLevel = models.RiskLevel(riskLevel)
	if lat.Valid && lng.Valid {
		rec.Geo.Point = &propmodels.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.Geo.VerifiedAt = &t
	}
	return &rec, nil
}
