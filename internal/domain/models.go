// Package domain defines the persistence models for push endpoints, users and
// delivery history. These types are mapped with GORM and form the core data
// layer of the push service.
package domain

import "time"

// Platform identifies the mobile operating system behind a device token.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool { return p == PlatformIOS || p == PlatformAndroid }

// WebPushSubscription is a browser Web Push endpoint owned by a user.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner (indexed).
//   - Endpoint: push service URL; globally unique natural key.
//   - P256dh / Auth: client encryption material (RFC 8291), required.
//   - UserAgent / DeviceInfo: diagnostics only.
//   - IsActive: soft on/off switch controlled by the user. Fan-out reads only
//     active rows; permanent provider failures hard-delete the row instead.
type WebPushSubscription struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_subs_user_active,priority:1"`
	Endpoint   string    `json:"endpoint"    gorm:"type:text;not null;uniqueIndex:ux_subs_endpoint"`
	P256dh     string    `json:"-"           gorm:"column:p256dh;type:text;not null"`
	Auth       string    `json:"-"           gorm:"type:text;not null"`
	UserAgent  string    `json:"user_agent,omitempty"  gorm:"type:text"`
	DeviceInfo string    `json:"device_info,omitempty" gorm:"type:text"`
	IsActive   bool      `json:"is_active"   gorm:"not null;default:true;index:idx_subs_user_active,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for WebPushSubscription.
func (WebPushSubscription) TableName() string { return "web_push_subscriptions" }

// User is the local projection of the user directory: display identity plus
// the device tokens owned by the user.
type User struct {
	ID         string    `json:"id"          gorm:"type:varchar(64);primaryKey"`
	Fullname   string    `json:"fullname"    gorm:"type:varchar(255);not null;default:''"`
	ProfilePic string    `json:"profile_pic,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// DeviceTokens are cascade-deleted with the user.
	DeviceTokens []DeviceToken `json:"device_tokens,omitempty" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DeviceToken is an FCM registration token for one of the user's devices.
// A token is unique per user; LastUsed is refreshed after a successful send.
type DeviceToken struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string     `json:"user_id"    gorm:"type:varchar(64);not null;index;uniqueIndex:ux_tokens_user_token,priority:1"`
	Token     string     `json:"-"          gorm:"type:text;not null;uniqueIndex:ux_tokens_user_token,priority:2"`
	Platform  Platform   `json:"platform"   gorm:"type:varchar(16);not null;check:platform IN ('ios','android')"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for DeviceToken.
func (DeviceToken) TableName() string { return "device_tokens" }

// DeliveryLog records the aggregated outcome of one orchestrated notification.
type DeliveryLog struct {
	ID        string `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_logs_user_created,priority:1"`
	EventType string `json:"event_type" gorm:"type:varchar(32);not null"`
	EventID   string `json:"event_id,omitempty" gorm:"type:varchar(128);index"`
	Title     string `json:"title"      gorm:"type:text"`
	Success   bool   `json:"success"`

	WebSent   int    `json:"web_sent"`
	WebFailed int    `json:"web_failed"`
	WebTotal  int    `json:"web_total"`
	WebPruned int    `json:"web_pruned"`
	WebError  string `json:"web_error,omitempty"    gorm:"type:text"`

	MobileSent   int    `json:"mobile_sent"`
	MobileFailed int    `json:"mobile_failed"`
	MobileTotal  int    `json:"mobile_total"`
	MobilePruned int    `json:"mobile_pruned"`
	MobileError  string `json:"mobile_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_logs_user_created,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DeliveryLog.
func (DeliveryLog) TableName() string { return "delivery_logs" }
