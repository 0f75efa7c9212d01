package controller

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// --- GORM Models ---

// User represents an admin user of the controller API.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash
	Role      string    `gorm:"default:admin" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Cloud represents one virtual Ethernet segment: a set of nodes sharing
// an admission token.
type Cloud struct {
	ID          uint32    `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	MTU         int       `gorm:"default:1500" json:"mtu"`
	Token       string    `gorm:"not null" json:"-"` // hex-encoded 64-bit admission token
	CreatedAt   time.Time `json:"created_at"`
	Members     []Member  `gorm:"foreignKey:CloudID" json:"members,omitempty"`
}

// Node represents a registered device, keyed by its identity address.
type Node struct {
	Address     string    `gorm:"primarykey" json:"address"`
	PublicKey   string    `gorm:"not null" json:"public_key"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	LastSeen    time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member represents one node's membership in one cloud.
type Member struct {
	CloudID     uint32    `gorm:"primaryKey" json:"cloud_id"`
	NodeAddress string    `gorm:"primaryKey" json:"node_address"`
	Authorized  bool      `gorm:"default:false" json:"authorized"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Node        Node      `gorm:"foreignKey:NodeAddress;references:Address" json:"node,omitempty"`
}

// InitDB initializes the database connection and runs migrations. Only
// sqlite DSNs are supported, matching the teacher's MVP scope.
func InitDB(dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "sqlite://") {
		dbPath := strings.TrimPrefix(dsn, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	} else {
		return nil, fmt.Errorf("unsupported database DSN: %s (only sqlite:// supported in MVP)", dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Cloud{}, &Node{}, &Member{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}
