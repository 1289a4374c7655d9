package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"propnest/internal/platform/postgres"
	"propnest/internal/property/models"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/sentinel"
	"propnest/pkg/platform/tx"
)

// PostgresStore persists properties in Postgres. Statements join a
// transaction carried in ctx when one is open.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const propertyColumns = `id, asset_id, owner_id, title, description, transaction_type, category,
	details, address, area, city, state, pincode, lat, lng, pricing, legal, media,
	status, verified, published_at, rejection_reason, views, saves, inquiries,
	verification, created_at, updated_at`

var counterColumns = map[models.Counter]string{
	models.CounterViews:     "views",
	models.CounterSaves:     "saves",
	models.CounterInquiries: "inquiries",
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Property) error {
	enc, err := encodeProperty(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO properties (` + propertyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.AssetID, uuid.UUID(p.OwnerID), p.Title, p.Description,
		string(p.TransactionType), string(p.Category), enc.details,
		p.Location.Address, p.Location.Area, p.Location.City, p.Location.State, p.Location.Pincode,
		enc.lat, enc.lng, enc.pricing, enc.legal, enc.media,
		string(p.Status), p.Verified, nullTime(p.PublishedAt), p.RejectionReason,
		p.Counters.Views, p.Counters.Saves, p.Counters.Inquiries,
		enc.verification, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, propertyID id.PropertyID) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(propertyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find property: %w", err)
	}
	return p, nil
}

// Update persists the editable fields of p. Status, counters and the
// verification summary have dedicated writers.
func (s *PostgresStore) Update(ctx context.Context, p *models.Property) error {
	enc, err := encodeProperty(p)
	if err != nil {
		return err
	}
	query := `
		UPDATE properties SET
			title = $2, description = $3, transaction_type = $4, category = $5, details = $6,
			address = $7, area = $8, city = $9, state = $10, pincode = $11, lat = $12, lng = $13,
			pricing = $14, legal = $15, media = $16, updated_at = $17
		WHERE id = $1
	`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.Title, p.Description, string(p.TransactionType), string(p.Category), enc.details,
		p.Location.Address, p.Location.Area, p.Location.City, p.Location.State, p.Location.Pincode,
		enc.lat, enc.lng, enc.pricing, enc.legal, enc.media, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	return requireRow(res)
}

// UpdateStatus writes the lifecycle fields of p only if the stored status is
// still from. A lost race surfaces as sentinel.ErrInvalidState.
func (s *PostgresStore) UpdateStatus(ctx context.Context, p *models.Property, from models.Status) error {
	query := `
		UPDATE properties
		SET status = $2, verified = $3, published_at = $4, rejection_reason = $5, updated_at = $6
		WHERE id = $1 AND status = $7
	`
	conn := tx.Conn(ctx, s.db)
	res, err := conn.ExecContext(ctx, query,
		uuid.UUID(p.ID), string(p.Status), p.Verified, nullTime(p.PublishedAt),
		p.RejectionReason, p.UpdatedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("update property status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property status: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM properties WHERE id = $1)`, uuid.UUID(p.ID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check property exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) UpdateVerification(ctx context.Context, propertyID id.PropertyID, summary models.VerificationSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode verification summary: %w", err)
	}
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE properties SET verification = $2 WHERE id = $1`,
		uuid.UUID(propertyID), string(raw),
	)
	if err != nil {
		return fmt.Errorf("update verification summary: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, propertyID id.PropertyID, counter models.Counter) error {
	col, ok := counterColumns[counter]
	if !ok {
		return ErrUnknownCounter
	}
	query := fmt.Sprintf(`UPDATE properties SET %s = %s + 1 WHERE id = $1`, col, col)
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(propertyID))
	if err != nil {
		return fmt.Errorf("increment %s: %w", col, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, propertyID id.PropertyID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, uuid.UUID(propertyID))
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	return requireRow(res)
}

// FindNearby prefilters on the sparse (lat, lng) index with a bounding box and
// keeps rows whose great-circle distance is within the radius. A box crossing
// the antimeridian matches both longitude edges.
func (s *PostgresStore) FindNearby(ctx context.Context, q models.NearbyQuery) ([]models.Nearby, error) {
	box := models.BoundingBox(q.Point, q.RadiusMeters)
	var exclude any
	if !q.ExcludeOwner.IsNil() {
		exclude = uuid.UUID(q.ExcludeOwner)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + propertyColumns + `, distance_m FROM (
			SELECT ` + propertyColumns + `,
				2 * 6371000 * asin(least(1, sqrt(
					power(sin(radians(lat - $1) / 2), 2) +
					cos(radians($1)) * cos(radians(lat)) * power(sin(radians(lng - $2) / 2), 2)
				))) AS distance_m
			FROM properties
			WHERE lat IS NOT NULL
				AND lat BETWEEN $3 AND $4
				AND (lng BETWEEN $5 AND $6 OR ($5 > $6 AND (lng >= $5 OR lng <= $6)))
				AND status = ANY($7)
				AND ($8::uuid IS NULL OR owner_id <> $8::uuid)
		) nearby
		WHERE distance_m <= $9
		ORDER BY distance_m
		LIMIT $10
	`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query,
		q.Point.Lat, q.Point.Lng, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
		pq.Array(models.StatusStrings(q.Statuses)), exclude, q.RadiusMeters, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query nearby properties: %w", err)
	}
	defer rows.Close()

	var out []models.Nearby
	for rows.Next() {
		var distance float64
		p, err := scanPropertyWith(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("scan nearby property: %w", err)
		}
		out = append(out, models.Nearby{Property: p, DistanceMeters: distance})
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRecentApproved(ctx context.Context, city string, category models.Category, limit int) ([]*models.Property, error) {
	query := `
		SELECT ` + propertyColumns + ` FROM properties
		WHERE lower(city) = lower($1) AND category = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT $4
	`
	return s.queryProperties(ctx, query, city, string(category), string(models.StatusApproved), limit)
}

func (s *PostgresStore) CountCreatedSince(ctx context.Context, owner id.UserID, since time.Time) (int, error) {
	var n int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE owner_id = $1 AND created_at >= $2`,
		uuid.UUID(owner), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent properties: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context, f models.ListFilter) ([]*models.Property, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(pq.Array(models.StatusStrings(f.Statuses)))+")")
	}
	if !f.OwnerID.IsNil() {
		where = append(where, "owner_id = "+arg(uuid.UUID(f.OwnerID)))
	}
	if f.City != "" {
		where = append(where, "lower(city) = lower("+arg(f.City)+")")
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.TransactionType != "" {
		where = append(where, "transaction_type = "+arg(string(f.TransactionType)))
	}

	query := `SELECT ` + propertyColumns + ` FROM properties`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}
	return s.queryProperties(ctx, query, args...)
}

func (s *PostgresStore) queryProperties(ctx context.Context, query string, args ...any) ([]*models.Property, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type encodedProperty struct {
	details      any
	pricing      any
	legal        string
	media        string
	verification string
	lat, lng     sql.NullFloat64
}

func encodeProperty(p *models.Property) (encodedProperty, error) {
	var enc encodedProperty
	if p.Details != nil {
		raw, err := models.MarshalDetails(p.Details)
		if err != nil {
			return enc, fmt.Errorf("encode details: %w", err)
		}
		enc.details = string(raw)
	}
	if p.Pricing != nil {
		raw, err := json.Marshal(p.Pricing)
		if err != nil {
			return enc, fmt.Errorf("encode pricing: %w", err)
		}
		enc.pricing = string(raw)
	}
	legal, err := json.Marshal(p.Legal)
	if err != nil {
		return enc, fmt.Errorf("encode legal: %w", err)
	}
	media, err := json.Marshal(p.Media)
	if err != nil {
		return enc, fmt.Errorf("encode media: %w", err)
	}
	verification, err := json.Marshal(p.Verification)
	if err != nil {
		return enc, fmt.Errorf("encode verification summary: %w", err)
	}
	enc.legal, enc.media, enc.verification = string(legal), string(media), string(verification)
	if p.HasPoint() {
		enc.lat = sql.NullFloat64{Float64: p.Location.Point.Lat, Valid: true}
		enc.lng = sql.NullFloat64{Float64: p.Location.Point.Lng, Valid: true}
	}
	return enc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	return scanPropertyWith(row)
}

// scanPropertyWith scans the property columns followed by extra trailing columns.
func scanPropertyWith(row rowScanner, extra ...any) (*models.Property, error) {
	var (
		p                          models.Property
		propertyID, ownerID        uuid.UUID
		tt, category, status       string
		details, pricing           []byte
		legal, media, verification []byte
		lat, lng                   sql.NullFloat64
		publishedAt                sql.NullTime
	)
	dest := []any{
		&propertyID, &p.AssetID, &ownerID, &p.Title, &p.Description, &tt, &category,
		&details, &p.Location.Address, &p.Location.Area, &p.Location.City, &p.Location.State, &p.Location.Pincode,
		&lat, &lng, &pricing, &legal, &media,
		&status, &p.Verified, &publishedAt, &p.RejectionReason,
		&p.Counters.Views, &p.Counters.Saves, &p.Counters.Inquiries,
		&verification, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.ID = id.PropertyID(propertyID)
	p.OwnerID = id.UserID(ownerID)
	p.TransactionType = models.TransactionType(tt)
	p.Category = models.Category(category)
	p.Status = models.Status(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	if lat.Valid && lng.Valid {
		p.Location.Point = &models.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}

	d, err := models.UnmarshalDetails(p.Category.Variant(), details)
	if err != nil {
		return nil, err
	}
	p.Details = d
	if len(pricing) > 0 && string(pricing) != "null" {
		p.Pricing = &models.Pricing{}
		if err := json.Unmarshal(pricing, p.Pricing); err != nil {
			return nil, fmt.Errorf("decode pricing: %w", err)
		}
	}
	if err := unmarshalOptional(legal, &p.Legal); err != nil {
		return nil, fmt.Errorf("decode legal: %w", err)
	}
	if err := unmarshalOptional(media, &p.Media); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if err := unmarshalOptional(verification, &p.Verification); err != nil {
		return nil, fmt.Errorf("decode verification summary: %w", err)
	}
	return &p, nil
}

func unmarshalOptional(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
