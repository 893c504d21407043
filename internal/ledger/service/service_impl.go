package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	"github.com/smallbiznis/pawnshop/internal/clock"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/pawnshop/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) EnsureAccounts(ctx context.Context, db *gorm.DB) error {
	conn := s.conn(db)
	now := s.clock.Now()
	for _, def := range ledgerdomain.DefaultAccounts {
		account := ledgerdomain.LedgerAccount{
			ID:        s.genID.Generate(),
			Code:      def.Code,
			Name:      def.Name,
			CreatedAt: now,
		}
		err := conn.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
			Create(&account).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateEntry(
	ctx context.Context,
	db *gorm.DB,
	sourceType ledgerdomain.LedgerSourceType,
	sourceID snowflake.ID,
	occurredAt time.Time,
	lines []ledgerdomain.PostingLine,
) (bool, error) {
	if strings.TrimSpace(string(sourceType)) == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if sourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	if occurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(lines) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.PostingLine, 0, len(lines))
	for _, line := range lines {
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return false, err
		}
		if !line.Amount.IsPositive() {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		normalized = append(normalized, ledgerdomain.PostingLine{
			Account:   line.Account,
			Direction: direction,
			Amount:    line.Amount,
		})
	}
	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return false, err
	}

	conn := s.conn(db)
	accounts, err := s.accountIDs(ctx, conn)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	entry := ledgerdomain.LedgerEntry{
		ID:         s.genID.Generate(),
		SourceType: sourceType,
		SourceID:   sourceID,
		OccurredAt: occurredAt.UTC(),
		CreatedAt:  now,
	}
	result := conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	rows := make([]*ledgerdomain.LedgerEntryLine, 0, len(normalized))
	for _, line := range normalized {
		accountID, ok := accounts[line.Account]
		if !ok {
			return false, ledgerdomain.ErrAccountNotFound
		}
		rows = append(rows, &ledgerdomain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     accountID,
			Direction:     line.Direction,
			Amount:        line.Amount,
			CreatedAt:     now,
		})
	}
	if err := conn.WithContext(ctx).Create(rows).Error; err != nil {
		return false, err
	}

	if s.auditSvc != nil {
		entryIDStr := entry.ID.String()
		if err := s.auditSvc.AuditLog(ctx, conn, "ledger.entry_created", "ledger_entry", &entryIDStr, map[string]any{
			"source_type": string(sourceType),
			"source_id":   sourceID.String(),
		}); err != nil {
			return false, err
		}
	}

	s.obsMetrics.RecordLedgerEntry(ctx, string(sourceType))
	return true, nil
}

func (s *Service) Reverse(ctx context.Context, db *gorm.DB, sourceType ledgerdomain.LedgerSourceType, sourceID snowflake.ID, occurredAt time.Time) (bool, error) {
	conn := s.conn(db)

	var entry ledgerdomain.LedgerEntry
	err := conn.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var lines []ledgerdomain.LedgerEntryLine
	if err := conn.WithContext(ctx).Where("ledger_entry_id = ?", entry.ID).Find(&lines).Error; err != nil {
		return false, err
	}

	codes, err := s.accountCodes(ctx, conn)
	if err != nil {
		return false, err
	}

	mirrored := make([]ledgerdomain.PostingLine, 0, len(lines))
	for _, line := range lines {
		direction := ledgerdomain.LedgerEntryDirectionDebit
		if line.Direction == ledgerdomain.LedgerEntryDirectionDebit {
			direction = ledgerdomain.LedgerEntryDirectionCredit
		}
		mirrored = append(mirrored, ledgerdomain.PostingLine{
			Account:   codes[line.AccountID],
			Direction: direction,
			Amount:    line.Amount,
		})
	}

	return s.CreateEntry(ctx, conn, ledgerdomain.SourceTypeReversal, entry.ID, occurredAt, mirrored)
}

func (s *Service) Balances(ctx context.Context) ([]ledgerdomain.AccountBalance, error) {
	var accounts []ledgerdomain.LedgerAccount
	if err := s.db.WithContext(ctx).Order("code asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	var lines []ledgerdomain.LedgerEntryLine
	if err := s.db.WithContext(ctx).Find(&lines).Error; err != nil {
		return nil, err
	}

	index := make(map[snowflake.ID]int, len(accounts))
	out := make([]ledgerdomain.AccountBalance, 0, len(accounts))
	for i, account := range accounts {
		index[account.ID] = i
		out = append(out, ledgerdomain.AccountBalance{
			Code:    account.Code,
			Name:    account.Name,
			Debit:   decimal.Zero,
			Credit:  decimal.Zero,
			Balance: decimal.Zero,
		})
	}
	for _, line := range lines {
		i, ok := index[line.AccountID]
		if !ok {
			continue
		}
		if line.Direction == ledgerdomain.LedgerEntryDirectionDebit {
			out[i].Debit = out[i].Debit.Add(line.Amount)
		} else {
			out[i].Credit = out[i].Credit.Add(line.Amount)
		}
	}
	for i := range out {
		out[i].Balance = out[i].Debit.Sub(out[i].Credit)
	}
	return out, nil
}

func (s *Service) accountIDs(ctx context.Context, db *gorm.DB) (map[ledgerdomain.LedgerAccountCode]snowflake.ID, error) {
	var accounts []ledgerdomain.LedgerAccount
	if err := db.WithContext(ctx).Find(&accounts).Error; err != nil {
		return nil, err
	}
	out := make(map[ledgerdomain.LedgerAccountCode]snowflake.ID, len(accounts))
	for _, account := range accounts {
		out[account.Code] = account.ID
	}
	return out, nil
}

func (s *Service) accountCodes(ctx context.Context, db *gorm.DB) (map[snowflake.ID]ledgerdomain.LedgerAccountCode, error) {
	ids, err := s.accountIDs(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID]ledgerdomain.LedgerAccountCode, len(ids))
	for code, id := range ids {
		out[id] = code
	}
	return out, nil
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	normalized := strings.ToLower(strings.TrimSpace(string(direction)))
	switch normalized {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
