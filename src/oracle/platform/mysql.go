package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// documentRow is the generic persisted form: one row per document,
// payload in a JSON column, revision for optimistic concurrency.
type documentRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	DocType   string `gorm:"size:32;uniqueIndex:idx_documents_type_doc,priority:1"`
	DocID     string `gorm:"size:64;uniqueIndex:idx_documents_type_doc,priority:2"`
	OwnerID   string `gorm:"size:64;index"`
	Revision  uint64
	Data      string `gorm:"type:json"`
	Signature string `gorm:"size:160"`
	Entropy   string `gorm:"size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

type contractRow struct {
	ContractID string `gorm:"primaryKey;size:64"`
	OwnerID    string `gorm:"size:64"`
	Schema     string `gorm:"type:json"`
	CreatedAt  time.Time
}

func (contractRow) TableName() string { return "contracts" }

// MySQLStore implements Store on a MySQL documents table.
type MySQLStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// ConnectMySQL opens the store with sane connection defaults and runs
// schema migration.
func ConnectMySQL(dsn string, log zerolog.Logger) (*MySQLStore, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("platform: open mysql: %w", err)
	}
	if err := db.AutoMigrate(&documentRow{}, &contractRow{}); err != nil {
		return nil, fmt.Errorf("platform: migrate: %w", err)
	}
	return &MySQLStore{db: db, log: log}, nil
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

var fieldRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var opSQL = map[string]string{
	"==": "=",
	">":  ">",
	">=": ">=",
	"<":  "<",
	"<=": "<=",
}

// jsonExpr builds the SQL expression for one payload field. String
// comparisons need JSON_UNQUOTE so they match the raw value.
func jsonExpr(field string, value any) (string, error) {
	if !fieldRE.MatchString(field) {
		return "", fmt.Errorf("platform: invalid query field %q", field)
	}
	if _, ok := value.(string); ok {
		return "JSON_UNQUOTE(JSON_EXTRACT(data, '$." + field + "'))", nil
	}
	return "JSON_EXTRACT(data, '$." + field + "')", nil
}

func (s *MySQLStore) Query(ctx context.Context, docType string, where []Where, opts QueryOptions) ([]Document, error) {
	q := s.db.WithContext(ctx).Model(&documentRow{}).Where("doc_type = ?", docType)
	for _, w := range where {
		op, ok := opSQL[w.Op]
		if !ok {
			return nil, fmt.Errorf("platform: unsupported query op %q", w.Op)
		}
		expr, err := jsonExpr(w.Field, w.Value)
		if err != nil {
			return nil, err
		}
		q = q.Where(expr+" "+op+" ?", w.Value)
	}
	if opts.OrderBy != "" {
		expr, err := jsonExpr(opts.OrderBy, 0)
		if err != nil {
			return nil, err
		}
		q = q.Order(expr + " ASC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []documentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("platform: query %s: %w", docType, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := rowToDocument(row)
		if err != nil {
			s.log.Warn().Err(err).Str("docId", row.DocID).Msg("undecodable document row, skipping")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func rowToDocument(row documentRow) (Document, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return Document{}, fmt.Errorf("platform: decode row %s/%s: %w", row.DocType, row.DocID, err)
	}
	return Document{
		Type:      row.DocType,
		ID:        row.DocID,
		OwnerID:   row.OwnerID,
		Revision:  row.Revision,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Data:      data,
	}, nil
}

func (s *MySQLStore) Create(ctx context.Context, doc Document, sig WriteSignature) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("platform: encode %s/%s: %w", doc.Type, doc.ID, err)
	}
	row := documentRow{
		DocType:   doc.Type,
		DocID:     doc.ID,
		OwnerID:   doc.OwnerID,
		Revision:  1,
		Data:      string(data),
		Signature: sig.Signature,
		Entropy:   sig.Entropy,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("platform: create %s/%s: %w", doc.Type, doc.ID, err)
	}
	return nil
}

func (s *MySQLStore) Replace(ctx context.Context, doc Document, prevRevision uint64, sig WriteSignature) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("platform: encode %s/%s: %w", doc.Type, doc.ID, err)
	}
	res := s.db.WithContext(ctx).Model(&documentRow{}).
		Where("doc_type = ? AND doc_id = ? AND revision = ?", doc.Type, doc.ID, prevRevision).
		Updates(map[string]any{
			"revision":   prevRevision + 1,
			"data":       string(data),
			"signature":  sig.Signature,
			"entropy":    sig.Entropy,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("platform: replace %s/%s: %w", doc.Type, doc.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("platform: replace %s/%s at revision %d: %w", doc.Type, doc.ID, prevRevision, ErrRevisionConflict)
	}
	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, docType, id string) error {
	res := s.db.WithContext(ctx).Where("doc_type = ? AND doc_id = ?", docType, id).Delete(&documentRow{})
	if res.Error != nil {
		return fmt.Errorf("platform: delete %s/%s: %w", docType, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("platform: delete %s/%s: %w", docType, id, ErrNotFound)
	}
	return nil
}

func (s *MySQLStore) FetchContract(ctx context.Context, id string) (Contract, error) {
	var row contractRow
	err := s.db.WithContext(ctx).Where("contract_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Contract{}, fmt.Errorf("platform: contract %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Contract{}, fmt.Errorf("platform: fetch contract %s: %w", id, err)
	}
	return Contract{
		ID:        row.ContractID,
		OwnerID:   row.OwnerID,
		Schema:    json.RawMessage(row.Schema),
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *MySQLStore) RegisterContract(ctx context.Context, c Contract) error {
	row := contractRow{ContractID: c.ID, OwnerID: c.OwnerID, Schema: string(c.Schema)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("platform: register contract %s: %w", c.ID, err)
	}
	return nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("platform: ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
