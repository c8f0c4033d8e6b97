package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/pagination"
	"finpanel/internal/uuid"
)

const itemModel = "Item"

// itemService manages the item catalog and keeps item-based transactions'
// amount and narrative in step with their attached items.
type itemService struct {
	db   *gorm.DB
	opts Options
}

// NewItemService creates a new ItemServicer.
func NewItemService(db *gorm.DB, opts Options) ItemServicer {
	return &itemService{db: db, opts: opts.withDefaults()}
}

// CreateItem adds a product or service to the catalog.
func (s *itemService) CreateItem(ctx context.Context, name string, itemType models.ItemType, price int64) (*models.Item, error) {
	item, err := s.createItemWithDB(s.db.WithContext(ctx), name, itemType, price)
	if err != nil {
		return nil, err
	}
	s.opts.Audit.Record(ctx, AuditEntry{
		Event:         models.AuditCreated,
		ModelName:     itemModel,
		SubjectID:     item.ID,
		ChangedFields: map[string]any{"name": item.Name, "type": item.Type, "price": item.Price},
	})
	return item, nil
}

func (s *itemService) createItemWithDB(tx *gorm.DB, name string, itemType models.ItemType, price int64) (*models.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item name is required")
	}
	if itemType != models.ItemTypeProduct && itemType != models.ItemTypeService {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item type must be product or service")
	}
	if price < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item price must not be negative")
	}

	item := &models.Item{
		Code:  uuid.NewCode("ITM"),
		Name:  name,
		Type:  itemType,
		Price: price,
	}
	if err := tx.Create(item).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return item, nil
}

// GetItems retrieves a paginated list of catalog items.
func (s *itemService) GetItems(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Item], error) {
	result, err := pagination.Find[models.Item](s.db.WithContext(ctx).Model(&models.Item{}), page, pagination.Order{Column: "name"})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetItemByID retrieves a catalog item by ID
func (s *itemService) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, dbError(err, apperrors.ErrItemNotFound)
	}
	return &item, nil
}

// AttachItem adds a catalog item to an item-based transaction at the given
// price and quantity. The item's catalog price becomes the attach price.
func (s *itemService) AttachItem(ctx context.Context, transactionID, itemID string, price int64, quantity int) (*models.TransactionItem, error) {
	start := time.Now()

	var attached *models.TransactionItem
	var t *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.Clauses(forUpdate).Where("id = ?", itemID).First(&item).Error; err != nil {
			return dbError(err, apperrors.ErrItemNotFound)
		}
		var err error
		t, attached, err = s.attach(tx, transactionID, &item, price, quantity)
		return err
	})
	if err = observe(s.opts.Metrics, "item.attach", start, err,
		"transaction_id", transactionID, "item_id", itemID); err != nil {
		return nil, err
	}

	s.recordAmountChange(ctx, t)
	return attached, nil
}

// AttachNewItem creates a catalog item and attaches it in one step.
func (s *itemService) AttachNewItem(ctx context.Context, transactionID, name string, itemType models.ItemType, price int64, quantity int) (*models.TransactionItem, error) {
	start := time.Now()

	var attached *models.TransactionItem
	var t *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.createItemWithDB(tx, name, itemType, price)
		if err != nil {
			return err
		}
		t, attached, err = s.attach(tx, transactionID, item, price, quantity)
		return err
	})
	if err = observe(s.opts.Metrics, "item.attach", start, err, "transaction_id", transactionID); err != nil {
		return nil, err
	}

	s.recordAmountChange(ctx, t)
	return attached, nil
}

func (s *itemService) attach(tx *gorm.DB, transactionID string, item *models.Item, price int64, quantity int) (*models.Transaction, *models.TransactionItem, error) {
	if err := validateLine(price, quantity); err != nil {
		return nil, nil, err
	}

	t, err := lockTransaction(tx, transactionID, false)
	if err != nil {
		return nil, nil, err
	}
	if !t.HasItems {
		return nil, nil, apperrors.WithMessage(apperrors.ErrItemsNotEnabled,
			fmt.Sprintf("transaction %s does not accept line items", t.Code))
	}

	var existing int64
	if err := tx.Model(&models.TransactionItem{}).
		Where("transaction_id = ? AND item_id = ?", t.ID, item.ID).
		Count(&existing).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if existing > 0 {
		return nil, nil, apperrors.WithMessage(apperrors.ErrDuplicateItem,
			fmt.Sprintf("%s is already attached to transaction %s", item.Name, t.Code))
	}

	line := &models.TransactionItem{
		TransactionID: t.ID,
		ItemID:        item.ID,
		Price:         price,
		Quantity:      quantity,
		Total:         price * int64(quantity),
	}
	if err := tx.Create(line).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if item.Price != price {
		if err := tx.Model(item).Update("price", price).Error; err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	t.Amount += line.Total
	t.Name = appendFragment(t.Name, itemFragment(item.Name, quantity))
	if err := saveAmountAndName(tx, t); err != nil {
		return nil, nil, err
	}

	line.Item = item
	return t, line, nil
}

// UpdateAttachedItem changes the price and quantity of an attached item and
// moves the transaction amount by the difference in totals.
func (s *itemService) UpdateAttachedItem(ctx context.Context, transactionID, itemID string, price int64, quantity int) (*models.TransactionItem, error) {
	start := time.Now()
	if err := validateLine(price, quantity); err != nil {
		return nil, err
	}

	var line *models.TransactionItem
	var t *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, line, err = lockLine(tx, transactionID, itemID)
		if err != nil {
			return err
		}

		oldFragment := itemFragment(line.Item.Name, line.Quantity)
		newTotal := price * int64(quantity)

		t.Amount += newTotal - line.Total
		t.Name = replaceFragment(t.Name, oldFragment, itemFragment(line.Item.Name, quantity))
		if err := saveAmountAndName(tx, t); err != nil {
			return err
		}

		line.Price = price
		line.Quantity = quantity
		line.Total = newTotal
		if err := tx.Model(line).Updates(map[string]interface{}{
			"price":    line.Price,
			"quantity": line.Quantity,
			"total":    line.Total,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err = observe(s.opts.Metrics, "item.update", start, err,
		"transaction_id", transactionID, "item_id", itemID); err != nil {
		return nil, err
	}

	s.recordAmountChange(ctx, t)
	return line, nil
}

// DetachItem removes an item from a transaction, subtracting its total and
// dropping its fragment from the narrative.
func (s *itemService) DetachItem(ctx context.Context, transactionID, itemID string) error {
	start := time.Now()

	var t *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			line *models.TransactionItem
			err  error
		)
		t, line, err = lockLine(tx, transactionID, itemID)
		if err != nil {
			return err
		}

		t.Amount -= line.Total
		t.Name = removeFragment(t.Name, itemFragment(line.Item.Name, line.Quantity))
		if err := saveAmountAndName(tx, t); err != nil {
			return err
		}

		if err := tx.Delete(line).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err = observe(s.opts.Metrics, "item.detach", start, err,
		"transaction_id", transactionID, "item_id", itemID); err != nil {
		return err
	}

	s.recordAmountChange(ctx, t)
	return nil
}

// GetAttachedItems lists the items attached to a transaction in attach order.
func (s *itemService) GetAttachedItems(ctx context.Context, transactionID string) ([]models.TransactionItem, error) {
	db := s.db.WithContext(ctx)

	var t models.Transaction
	if err := db.Select("id").Where("id = ?", transactionID).First(&t).Error; err != nil {
		return nil, dbError(err, apperrors.ErrTransactionNotFound)
	}

	var lines []models.TransactionItem
	if err := db.Preload("Item", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return lines, nil
}

func (s *itemService) recordAmountChange(ctx context.Context, t *models.Transaction) {
	if t == nil {
		return
	}
	s.opts.Audit.Record(ctx, AuditEntry{
		Event:         models.AuditUpdated,
		ModelName:     transactionModel,
		SubjectID:     t.ID,
		ChangedFields: map[string]any{"amount": t.Amount, "name": t.Name},
	})
}

func validateLine(price int64, quantity int) error {
	if quantity < 1 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be at least 1")
	}
	if price < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "price must not be negative")
	}
	return nil
}

// lockLine locks a transaction and loads one of its attached lines with the
// line's item, deleted or not.
func lockLine(tx *gorm.DB, transactionID, itemID string) (*models.Transaction, *models.TransactionItem, error) {
	t, err := lockTransaction(tx, transactionID, false)
	if err != nil {
		return nil, nil, err
	}

	var line models.TransactionItem
	if err := tx.Preload("Item", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("transaction_id = ? AND item_id = ?", t.ID, itemID).
		First(&line).Error; err != nil {
		return nil, nil, dbError(err, apperrors.ErrItemNotAttached)
	}
	if line.Item == nil {
		return nil, nil, apperrors.ErrItemNotFound
	}
	return t, &line, nil
}

func saveAmountAndName(tx *gorm.DB, t *models.Transaction) error {
	if err := tx.Model(t).Updates(map[string]interface{}{
		"amount": t.Amount,
		"name":   t.Name,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
