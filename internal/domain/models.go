// internal/domain/models.go
package domain

import "time"

// Outlet represents a retail outlet in the network. Master data is owned by the
// external inventory system; values are immutable for the duration of a run.
type Outlet struct {
	ID          string   `json:"outlet_id" db:"outlet_id"`
	Name        string   `json:"outlet_name" db:"outlet_name"`
	Latitude    *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" db:"longitude"`
	IsWarehouse bool     `json:"is_warehouse" db:"is_warehouse"`
}

// HasCoordinates reports whether the outlet carries usable GPS coordinates.
func (o Outlet) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// Product carries the pricing, weight and pack metadata needed for transfer math.
type Product struct {
	ID            string  `json:"product_id" db:"product_id"`
	Name          string  `json:"product_name" db:"product_name"`
	RetailPrice   float64 `json:"retail_price" db:"retail_price"`
	SupplyPrice   float64 `json:"supply_price" db:"supply_price"`
	WeightGrams   float64 `json:"weight_grams" db:"weight_grams"`
	PackSize      int     `json:"pack_size" db:"pack_size"`
	OuterPackSize int     `json:"outer_pack_size" db:"outer_pack_size"`
	CategoryCode  string  `json:"category_code" db:"category_code"`
}

// InventoryLine is one (outlet, product) pair as read from the inventory source,
// annotated by the analyzer for the duration of a single run.
type InventoryLine struct {
	Outlet         Outlet  `json:"outlet"`
	Product        Product `json:"product"`
	InventoryLevel float64 `json:"inventory_level"`
	ReorderPoint   float64 `json:"reorder_point"`
	DailyVelocity  float64 `json:"daily_velocity"`

	// Derived by the analyzer.
	DaysOfStock    float64             `json:"days_of_stock"`
	Classification StockClassification `json:"classification"`
	MarginPercent  float64             `json:"margin_percent"`
	ProfitPerUnit  float64             `json:"profit_per_unit"`
}

// RetailValue is the retail value of the stock on hand.
func (l InventoryLine) RetailValue() float64 {
	return l.InventoryLevel * l.Product.RetailPrice
}

// PackRule is the resolved packaging constraint for a product.
// Looked up once per product per run, never mutated.
type PackRule struct {
	PackSize      int          `json:"pack_size"`
	OuterMultiple int          `json:"outer_multiple"`
	EnforceOuter  bool         `json:"enforce_outer"`
	RoundingMode  RoundingMode `json:"rounding_mode"`
	Source        RuleSource   `json:"source"`
	Confidence    float64      `json:"confidence"`
}

// RoundingMode controls how raw quantities snap to pack multiples.
type RoundingMode string

const (
	RoundFloor RoundingMode = "floor"
	RoundCeil  RoundingMode = "ceil"
	RoundHalf  RoundingMode = "round"
)

// RuleSource identifies which tier of the cascade produced a pack rule.
type RuleSource string

const (
	RuleSourceProduct         RuleSource = "product"
	RuleSourceCategory        RuleSource = "category"
	RuleSourceCategoryDefault RuleSource = "category_default"
	RuleSourceKeyword         RuleSource = "keyword"
	RuleSourceSystemDefault   RuleSource = "system_default"
)

// TransferOpportunity is a candidate transfer of one product between two outlets.
type TransferOpportunity struct {
	Source  InventoryLine `json:"source"`
	Target  InventoryLine `json:"target"`
	Product Product       `json:"product"`

	SuggestedQty int `json:"suggested_qty"`
	FinalQty     int `json:"final_qty"` // pack-compliant, set by the viability filter
	PackSize     int `json:"pack_size"`

	ProductValue    float64 `json:"product_value"`
	ProfitPotential float64 `json:"profit_potential"`
	ShippingCost    float64 `json:"shipping_cost"`
	NetBenefit      float64 `json:"net_benefit"`
	ROIPercent      float64 `json:"roi_percent"`
	WeightGrams     float64 `json:"weight_grams"`

	Viable           bool     `json:"viable"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
}

// TransferBatch aggregates viable opportunities sharing one (source, target) pair.
// Shipping is priced once against the combined weight.
type TransferBatch struct {
	Source Outlet `json:"source_outlet"`
	Target Outlet `json:"target_outlet"`

	Opportunities []TransferOpportunity `json:"opportunities"`

	TotalValue      float64 `json:"total_value"`
	TotalWeightKG   float64 `json:"total_weight_kg"`
	ShippingCost    float64 `json:"shipping_cost"`
	Container       string  `json:"container"`
	NetBenefit      float64 `json:"net_benefit"`
	EfficiencyScore float64 `json:"efficiency_score"`
	CostEfficiency  float64 `json:"cost_efficiency"`
	MarginPercent   float64 `json:"margin_percent"`

	// Route is populated when the batch's source serves multiple destinations.
	Route *RouteLeg `json:"route,omitempty"`
}

// ItemCount is the total pack-compliant unit count in the batch.
func (b TransferBatch) ItemCount() int {
	n := 0
	for _, opp := range b.Opportunities {
		n += opp.FinalQty
	}
	return n
}

// RouteLeg describes one delivery leg in an optimized multi-drop route.
type RouteLeg struct {
	Sequence        int     `json:"sequence"`
	DistanceKM      float64 `json:"distance_km"`
	TravelMinutes   int     `json:"travel_minutes"`
	RouteDistanceKM float64 `json:"route_distance_km"`
	EfficiencyScore float64 `json:"route_efficiency_score"`
	Destinations    int     `json:"route_destinations"`
}

// PriorityLevel ranks a recommendation for execution ordering.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "HIGH"
	PriorityMedium PriorityLevel = "MEDIUM"
	PriorityLow    PriorityLevel = "LOW"
)

// RecommendedAction is the engine's verdict on how a recommendation should proceed.
type RecommendedAction string

const (
	ActionExecuteImmediately RecommendedAction = "EXECUTE_IMMEDIATELY"
	ActionScheduleDelivery   RecommendedAction = "SCHEDULE_DELIVERY"
	ActionManualReview       RecommendedAction = "MANUAL_REVIEW"
)

// FinancialSummary rolls up the money side of a recommendation.
type FinancialSummary struct {
	TotalValue    float64 `json:"total_value"`
	ShippingCost  float64 `json:"shipping_cost"`
	MarginPercent float64 `json:"margin_percent"`
	NetBenefit    float64 `json:"net_benefit"`
}

// LogisticsSummary rolls up the physical side of a recommendation.
type LogisticsSummary struct {
	TotalItems    int       `json:"total_items"`
	TotalWeightKG float64   `json:"total_weight_kg"`
	Container     string    `json:"container"`
	Route         *RouteLeg `json:"route,omitempty"`
}

// DecisionBreakdown explains the scores behind a recommendation.
type DecisionBreakdown struct {
	OpportunityScore   float64 `json:"opportunity_score"`
	Confidence         float64 `json:"confidence"`
	CostEfficiency     float64 `json:"cost_efficiency"`
	PackComplianceRate float64 `json:"pack_compliance_rate"`
	ROIPercent         float64 `json:"roi_percent"`
}

// Recommendation is a finalized, immutable transfer recommendation.
// Execution is an external concern; stale recommendations must be regenerated.
type Recommendation struct {
	ID     string `json:"recommendation_id"`
	Source Outlet `json:"source_outlet"`
	Target Outlet `json:"target_outlet"`

	Batch     TransferBatch     `json:"batch"`
	Financial FinancialSummary  `json:"financial_summary"`
	Logistics LogisticsSummary  `json:"logistics_summary"`
	Decision  DecisionBreakdown `json:"decision_breakdown"`

	Priority         PriorityLevel     `json:"priority"`
	Action           RecommendedAction `json:"recommended_action"`
	RequiresApproval bool              `json:"requires_approval"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OutletImbalance flags an outlet with a concentration of stock issues.
type OutletImbalance struct {
	Type          StockClassification `json:"type"`
	OutletID      string              `json:"outlet_id"`
	OutletName    string              `json:"outlet_name"`
	Severity      int                 `json:"severity"`
	ItemsAffected int                 `json:"items_affected"`
}

// NetworkSummary is the run-level view of the inventory snapshot.
type NetworkSummary struct {
	OutletCount      int               `json:"outlet_count"`
	OutletsSkipped   int               `json:"outlets_skipped"`
	LineCount        int               `json:"line_count"`
	TotalValue       float64           `json:"total_value"`
	OverstockCount   int               `json:"overstock_count"`
	UnderstockCount  int               `json:"understock_count"`
	BalancedCount    int               `json:"balanced_count"`
	AvgMarginPercent float64           `json:"avg_margin_percent"`
	Imbalances       []OutletImbalance `json:"imbalances"`
}

// ExecutiveSummary is the dashboard-level rollup of a completed run.
type ExecutiveSummary struct {
	TotalRecommendations int     `json:"total_recommendations"`
	TotalValue           float64 `json:"total_transfer_value"`
	TotalShippingCost    float64 `json:"total_shipping_cost"`
	EstimatedNetBenefit  float64 `json:"estimated_net_benefit"`
	AvgROIPercent        float64 `json:"avg_roi_percent"`
	TotalItems           int     `json:"total_items"`
	TotalWeightKG        float64 `json:"total_weight_kg"`
	AvgConfidence        float64 `json:"avg_confidence"`

	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
	LowPriority    int `json:"low_priority"`

	ExecuteImmediately int `json:"execute_immediately"`
	ScheduleDelivery   int `json:"schedule_delivery"`
	ManualReview       int `json:"manual_review"`
	PendingApproval    int `json:"pending_approval"`
}
