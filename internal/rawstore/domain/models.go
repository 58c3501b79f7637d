package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
)

// RawRecord is one upstream entity instance landed as-is in the raw layer.
// The same shape backs every collection table.
type RawRecord struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	ExternalID int64            `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Payload    datatypes.JSON   `gorm:"type:jsonb;not null" json:"payload"`
	IngestedAt time.Time        `gorm:"not null" json:"ingested_at"`
	Status     ProcessingStatus `gorm:"column:processing_status;type:varchar(16);not null;default:pending;index" json:"processing_status"`
}

// Collection names a raw-layer table and the upstream resource it mirrors.
type Collection struct {
	// Name labels logs and metrics.
	Name string
	// Table is the raw-layer table.
	Table string
	// Resource is the upstream API path segment.
	Resource string
}

var (
	Contacts   = Collection{Name: "contacts", Table: "raw_contacts", Resource: "contatos"}
	Products   = Collection{Name: "products", Table: "raw_products", Resource: "produtos"}
	Orders     = Collection{Name: "orders", Table: "raw_orders", Resource: "pedidos/vendas"}
	Channels   = Collection{Name: "channels", Table: "raw_channels", Resource: "canais-venda"}
	Situations = Collection{Name: "situations", Table: "raw_situations", Resource: "situacoes"}
)

// All lists every raw collection in extraction order.
func All() []Collection {
	return []Collection{Contacts, Products, Orders, Channels, Situations}
}
