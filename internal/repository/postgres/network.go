package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

// NetworkRepository reads outlet, inventory and pack-rule data. It implements
// the analyzer's inventory source and the pack-rule cascade source.
type NetworkRepository struct {
	db         *DB
	windowDays int
}

func NewNetworkRepository(db *DB, velocityWindowDays int) *NetworkRepository {
	if velocityWindowDays <= 0 {
		velocityWindowDays = 30
	}
	return &NetworkRepository{db: db, windowDays: velocityWindowDays}
}

const outletsQuery = `
SELECT outlet_id, outlet_name, latitude, longitude, is_warehouse
FROM outlets
WHERE deleted_at IS NULL
ORDER BY outlet_name`

func (r *NetworkRepository) Outlets(ctx context.Context) ([]domain.Outlet, error) {
	var outlets []domain.Outlet
	err := r.db.Gate(ctx, func() error {
		return r.db.SelectContext(ctx, &outlets, outletsQuery)
	})
	if err != nil {
		return nil, fmt.Errorf("select outlets: %w", err)
	}
	return outlets, nil
}

// inventoryRow is the flat scan target for the per-outlet inventory query.
type inventoryRow struct {
	OutletID      string   `db:"outlet_id"`
	OutletName    string   `db:"outlet_name"`
	Latitude      *float64 `db:"latitude"`
	Longitude     *float64 `db:"longitude"`
	IsWarehouse   bool     `db:"is_warehouse"`
	ProductID     string   `db:"product_id"`
	ProductName   string   `db:"product_name"`
	RetailPrice   float64  `db:"retail_price"`
	SupplyPrice   float64  `db:"supply_price"`
	WeightGrams   float64  `db:"weight_grams"`
	PackSize      int      `db:"pack_size"`
	OuterPackSize int      `db:"outer_pack_size"`
	CategoryCode  string   `db:"category_code"`
	Inventory     float64  `db:"inventory_level"`
	ReorderPoint  float64  `db:"reorder_point"`
	DailyVelocity float64  `db:"daily_velocity"`
}

// Velocity is units sold over the trailing window divided by the window
// length. Products without sales in the window come back with zero velocity.
const outletInventoryQuery = `
SELECT o.outlet_id,
       o.outlet_name,
       o.latitude,
       o.longitude,
       o.is_warehouse,
       p.product_id,
       p.product_name,
       COALESCE(p.retail_price, 0)            AS retail_price,
       COALESCE(p.supply_price, 0)            AS supply_price,
       COALESCE(p.weight_grams, 0)            AS weight_grams,
       COALESCE(p.pack_size, 0)               AS pack_size,
       COALESCE(p.outer_pack_size, 0)         AS outer_pack_size,
       COALESCE(p.category_code, '')          AS category_code,
       COALESCE(i.inventory_level, 0)         AS inventory_level,
       COALESCE(i.reorder_point, 0)           AS reorder_point,
       COALESCE(s.units_sold, 0) / $2::float  AS daily_velocity
FROM inventory i
JOIN outlets o ON o.outlet_id = i.outlet_id
JOIN products p ON p.product_id = i.product_id AND p.deleted_at IS NULL
LEFT JOIN (
    SELECT product_id, SUM(quantity) AS units_sold
    FROM sales
    WHERE outlet_id = $1
      AND sold_at >= NOW() - make_interval(days => $2)
    GROUP BY product_id
) s ON s.product_id = i.product_id
WHERE i.outlet_id = $1
  AND i.inventory_level > 0
  AND p.supply_price > 0
  AND p.retail_price > p.supply_price`

func (r *NetworkRepository) OutletInventory(ctx context.Context, outletID string) ([]domain.InventoryLine, error) {
	var rows []inventoryRow
	err := r.db.Gate(ctx, func() error {
		return r.db.SelectContext(ctx, &rows, outletInventoryQuery, outletID, r.windowDays)
	})
	if err != nil {
		return nil, fmt.Errorf("select inventory for outlet %s: %w", outletID, err)
	}

	lines := make([]domain.InventoryLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.InventoryLine{
			Outlet: domain.Outlet{
				ID:          row.OutletID,
				Name:        row.OutletName,
				Latitude:    row.Latitude,
				Longitude:   row.Longitude,
				IsWarehouse: row.IsWarehouse,
			},
			Product: domain.Product{
				ID:            row.ProductID,
				Name:          row.ProductName,
				RetailPrice:   row.RetailPrice,
				SupplyPrice:   row.SupplyPrice,
				WeightGrams:   row.WeightGrams,
				PackSize:      row.PackSize,
				OuterPackSize: row.OuterPackSize,
				CategoryCode:  row.CategoryCode,
			},
			InventoryLevel: row.Inventory,
			ReorderPoint:   row.ReorderPoint,
			DailyVelocity:  row.DailyVelocity,
		})
	}

	return lines, nil
}

type packRuleRow struct {
	PackSize      int     `db:"pack_size"`
	OuterMultiple int     `db:"outer_multiple"`
	EnforceOuter  bool    `db:"enforce_outer"`
	RoundingMode  string  `db:"rounding_mode"`
	Confidence    float64 `db:"confidence"`
}

func (row packRuleRow) toDomain(source domain.RuleSource) *domain.PackRule {
	return &domain.PackRule{
		PackSize:      row.PackSize,
		OuterMultiple: row.OuterMultiple,
		EnforceOuter:  row.EnforceOuter,
		RoundingMode:  domain.RoundingMode(row.RoundingMode),
		Source:        source,
		Confidence:    row.Confidence,
	}
}

const productRuleQuery = `
SELECT pack_size, outer_multiple, enforce_outer, rounding_mode, confidence
FROM product_pack_rules
WHERE product_id = $1`

func (r *NetworkRepository) ProductRule(ctx context.Context, productID string) (*domain.PackRule, error) {
	return r.packRule(ctx, productRuleQuery, productID, domain.RuleSourceProduct)
}

const categoryRuleQuery = `
SELECT pack_size, outer_multiple, enforce_outer, rounding_mode, confidence
FROM category_pack_rules
WHERE category_code = $1`

func (r *NetworkRepository) CategoryRule(ctx context.Context, categoryCode string) (*domain.PackRule, error) {
	return r.packRule(ctx, categoryRuleQuery, categoryCode, domain.RuleSourceCategory)
}

const categoryDefaultQuery = `
SELECT pack_size, outer_multiple, enforce_outer, rounding_mode, confidence
FROM category_default_pack_rules
WHERE category_code = $1`

func (r *NetworkRepository) CategoryDefault(ctx context.Context, categoryCode string) (*domain.PackRule, error) {
	return r.packRule(ctx, categoryDefaultQuery, categoryCode, domain.RuleSourceCategoryDefault)
}

func (r *NetworkRepository) packRule(ctx context.Context, query, key string, source domain.RuleSource) (*domain.PackRule, error) {
	var row packRuleRow
	err := r.db.Gate(ctx, func() error {
		return r.db.GetContext(ctx, &row, query, key)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s pack rule for %q: %w", source, key, err)
	}
	return row.toDomain(source), nil
}

const activeOutletCountQuery = `
SELECT COUNT(*) FROM outlets WHERE deleted_at IS NULL`

// ActiveOutletCount backs the health check.
func (r *NetworkRepository) ActiveOutletCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.Gate(ctx, func() error {
		return r.db.GetContext(ctx, &count, activeOutletCountQuery)
	})
	if err != nil {
		return 0, fmt.Errorf("count outlets: %w", err)
	}
	return count, nil
}
