package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DimContact is the flattened customer dimension derived from raw contacts.
type DimContact struct {
	ContactID  snowflake.ID `gorm:"primaryKey;column:contact_id" json:"contact_id"`
	ExternalID int64        `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Name       string       `gorm:"not null" json:"name"`
	TaxID      *string      `gorm:"column:tax_id;type:varchar(14)" json:"tax_id,omitempty"`
	// PersonType is F for individuals (11-digit tax id) and J for
	// organizations (14 digits).
	PersonType  *string   `gorm:"column:person_type;type:char(1)" json:"person_type,omitempty"`
	Phone       *string   `gorm:"type:varchar(20)" json:"phone,omitempty"`
	City        *string   `json:"city,omitempty"`
	State       *string   `gorm:"type:varchar(2)" json:"state,omitempty"`
	PostalCode  *string   `gorm:"column:postal_code;type:varchar(10)" json:"postal_code,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (DimContact) TableName() string { return "dim_contacts" }

// DimProduct is the product dimension. Bicycle attributes are extracted from
// the free-text description and stay null for everything else.
type DimProduct struct {
	ProductID      snowflake.ID `gorm:"primaryKey;column:product_id" json:"product_id"`
	ExternalID     int64        `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	SKU            *string      `gorm:"column:sku" json:"sku,omitempty"`
	Description    string       `gorm:"not null" json:"description"`
	SalePrice      float64      `gorm:"column:sale_price;type:numeric(15,2)" json:"sale_price"`
	CostPrice      float64      `gorm:"column:cost_price;type:numeric(15,2)" json:"cost_price"`
	WheelSize      *string      `gorm:"column:wheel_size" json:"wheel_size,omitempty"`
	Brand          *string      `json:"brand,omitempty"`
	PrimaryColor   *string      `gorm:"column:primary_color" json:"primary_color,omitempty"`
	SecondaryColor *string      `gorm:"column:secondary_color" json:"secondary_color,omitempty"`
	TertiaryColor  *string      `gorm:"column:tertiary_color" json:"tertiary_color,omitempty"`
	FrameSize      *string      `gorm:"column:frame_size" json:"frame_size,omitempty"`
	Gears          *int         `json:"gears,omitempty"`
	BrakeType      *string      `gorm:"column:brake_type" json:"brake_type,omitempty"`
	Gender         *string      `json:"gender,omitempty"`
	Audience       *string      `json:"audience,omitempty"`
	Category       *string      `json:"category,omitempty"`
	Situation      *string      `json:"situation,omitempty"`
	IngestedAt     time.Time    `json:"ingested_at"`
	ProcessedAt    time.Time    `gorm:"not null" json:"processed_at"`
}

func (DimProduct) TableName() string { return "dim_products" }

// DimChannel maps an upstream sales-channel id to its description.
type DimChannel struct {
	ChannelID   snowflake.ID `gorm:"primaryKey;column:channel_id" json:"channel_id"`
	ExternalID  int64        `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Label       string       `gorm:"not null" json:"label"`
	ChannelType *string      `gorm:"column:channel_type" json:"channel_type,omitempty"`
	IngestedAt  time.Time    `json:"ingested_at"`
	ProcessedAt time.Time    `gorm:"not null" json:"processed_at"`
}

func (DimChannel) TableName() string { return "dim_channels" }

// FactOrder is one row per sales order with aggregate metrics derived from
// the raw document's item array.
type FactOrder struct {
	OrderID     snowflake.ID  `gorm:"primaryKey;column:order_id" json:"order_id"`
	ExternalID  int64         `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	OrderNumber *string       `gorm:"column:order_number" json:"order_number,omitempty"`
	OrderDate   time.Time     `gorm:"column:order_date;type:date;not null;index" json:"order_date"`
	ContactID   *snowflake.ID `gorm:"column:contact_id;index" json:"contact_id,omitempty"`
	ChannelExternalID *int64  `gorm:"column:channel_external_id;index" json:"channel_external_id,omitempty"`
	TotalValue   float64      `gorm:"column:total_value;type:numeric(15,2);not null" json:"total_value"`
	FreightValue float64      `gorm:"column:freight_value;type:numeric(15,2);not null" json:"freight_value"`
	// ItemsTotal counts distinct lines, UnitsTotal sums their quantities.
	ItemsTotal  int       `gorm:"column:items_total" json:"items_total"`
	UnitsTotal  float64   `gorm:"column:units_total" json:"units_total"`
	Situation   *string   `gorm:"index" json:"situation,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (FactOrder) TableName() string { return "fact_orders" }

// FactOrderItem is one row per element of an order's item array.
type FactOrderItem struct {
	ItemID  snowflake.ID `gorm:"primaryKey;column:item_id" json:"item_id"`
	OrderID snowflake.ID `gorm:"column:order_id;not null;uniqueIndex:idx_order_item;index" json:"order_id"`
	// ExternalID is the upstream line-item id, unique within its order.
	ExternalID  int64         `gorm:"column:external_id;not null;uniqueIndex:idx_order_item" json:"external_id"`
	ProductID   *snowflake.ID `gorm:"column:product_id;index" json:"product_id,omitempty"`
	Description *string       `json:"description,omitempty"`
	ProductCode *string       `gorm:"column:product_code" json:"product_code,omitempty"`
	Quantity    float64       `gorm:"type:numeric(15,3);not null" json:"quantity"`
	UnitPrice   float64       `gorm:"column:unit_price;type:numeric(15,2);not null" json:"unit_price"`
	Discount    float64       `gorm:"type:numeric(15,2);not null" json:"discount"`
	// Total is quantity × unit_price − discount, rounded to cents.
	Total       float64   `gorm:"type:numeric(15,2);not null" json:"total"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (FactOrderItem) TableName() string { return "fact_order_items" }
