package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/customer/domain"
	"github.com/smallbiznis/pawnshop/pkg/db/pagination"
	"github.com/smallbiznis/pawnshop/pkg/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	customer, err := s.build(req)
	if err != nil {
		return domain.Customer{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.Insert(ctx, tx, &customer)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindByNICUnscoped(ctx, tx, customer.NIC)
			if err != nil {
				return err
			}
			if existing != nil && existing.DeletedAt.Valid {
				return domain.ErrNICUnavailable
			}
			return domain.ErrAlreadyExists
		}
		return s.audit(ctx, tx, "customer.create", customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	if err := validator.Validate(req); err != nil {
		return domain.Customer{}, err
	}

	var customer domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			existing.Name = name
		}
		if req.Phone != nil {
			existing.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Email != nil {
			existing.Email = strings.TrimSpace(*req.Email)
		}
		if req.Address != nil {
			existing.Address = strings.TrimSpace(*req.Address)
		}
		existing.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, existing); err != nil {
			return err
		}
		customer = *existing
		return s.audit(ctx, tx, "customer.update", customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name:        strings.TrimSpace(req.Name),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	customers, pageInfo := pagination.Trim(items, page.Size(), func(c *domain.Customer) pagination.Cursor {
		return pagination.Cursor{ID: c.ID, CreatedAt: c.CreatedAt}
	})
	return domain.ListCustomerResponse{Customers: customers, PageInfo: pageInfo}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) GetByNIC(ctx context.Context, nic string) (domain.Customer, error) {
	nic = validator.NormalizeNIC(nic)
	if !validator.ValidNIC(nic) {
		return domain.Customer{}, domain.ErrInvalidNIC
	}

	item, err := s.repo.FindByNIC(ctx, s.db, nic)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	if db == nil {
		db = s.db
	}
	return s.repo.FindByID(ctx, db, id)
}

func (s *Service) Resolve(ctx context.Context, db *gorm.DB, req domain.CreateCustomerRequest) (*domain.Customer, bool, error) {
	if db == nil {
		db = s.db
	}

	nic := validator.NormalizeNIC(req.NIC)
	if !validator.ValidNIC(nic) {
		return nil, false, domain.ErrInvalidNIC
	}

	existing, err := s.repo.FindByNIC(ctx, db, nic)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	customer, err := s.build(req)
	if err != nil {
		return nil, false, err
	}

	inserted, err := s.repo.Insert(ctx, db, &customer)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		if err := s.audit(ctx, db, "customer.create", customer); err != nil {
			return nil, false, err
		}
		return &customer, true, nil
	}

	// Lost the race to a concurrent insert, or the NIC belongs to a deleted row.
	existing, err = s.repo.FindByNIC(ctx, db, nic)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, domain.ErrNICUnavailable
	}
	return existing, false, nil
}

func (s *Service) build(req domain.CreateCustomerRequest) (domain.Customer, error) {
	req.NIC = validator.NormalizeNIC(req.NIC)
	req.Name = strings.TrimSpace(req.Name)
	if !validator.ValidNIC(req.NIC) {
		return domain.Customer{}, domain.ErrInvalidNIC
	}
	if req.Name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}
	if err := validator.Validate(req); err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now()
	return domain.Customer{
		ID:        s.genID.Generate(),
		NIC:       req.NIC,
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Service) audit(ctx context.Context, db *gorm.DB, action string, customer domain.Customer) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := customer.ID.String()
	return s.auditSvc.AuditLog(ctx, db, action, "customer", &targetID, map[string]any{
		"nic":  customer.NIC,
		"name": customer.Name,
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
