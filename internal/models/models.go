package models

import (
	"slices"
	"time"
)

const (
	RoleAnonymous = "anonymous"
	RoleUser      = "user"
	RoleAdmin     = "admin"
)

func IsValidRole(role string) bool {
	return role == RoleAnonymous || role == RoleUser || role == RoleAdmin
}

// Account is the persisted identity record. PasswordHash and the refresh
// token state never leave the process.
type Account struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	Username           string    `gorm:"size:255;uniqueIndex;not null"   json:"username"`
	Name               *string   `gorm:"size:255"                        json:"name,omitempty"`
	Role               string    `gorm:"size:9;not null;default:anonymous" json:"role"`
	PasswordHash       string    `gorm:"size:100;not null"               json:"-"`
	RefreshTokenHash   *string   `gorm:"size:64;index"                   json:"-"`
	RefreshTokenExpiry time.Time `json:"-"`
}

func (a *Account) Profile() AccountProfile {
	return AccountProfile{
		ID:       a.ID,
		Username: a.Username,
		Name:     a.Name,
		Role:     a.Role,
	}
}

type AccountProfile struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name,omitempty"`
	Role     string  `json:"role"`
}

const (
	DevicePC     = "PC"
	DeviceLaptop = "Laptop"
	DeviceMac    = "Mac"
	DevicePhone  = "Phone"
	DeviceOther  = "Other"
)

var DeviceTypes = []string{DevicePC, DeviceLaptop, DeviceMac, DevicePhone, DeviceOther}

// IsValidDeviceType accepts nil as "unspecified".
func IsValidDeviceType(t *string) bool {
	return t == nil || slices.Contains(DeviceTypes, *t)
}

type Peer struct {
	ID                uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	PublicKey         string  `gorm:"uniqueIndex;not null"     json:"publicKey"`
	AllowedIPs        string  `gorm:"not null"                 json:"allowedIPs"`
	DeviceDescription *string `json:"deviceDescription,omitempty"`
	DeviceType        *string `json:"deviceType,omitempty"`
	OwnerID           uint    `gorm:"index;not null"           json:"ownerId"`
}

type PeerProfile struct {
	ID                uint    `json:"id"`
	PublicKey         string  `json:"publicKey"`
	AllowedIPs        string  `json:"allowedIPs"`
	DeviceDescription *string `json:"deviceDescription,omitempty"`
	OwnerName         *string `json:"ownerName,omitempty"`
	OwnerUsername     string  `json:"ownerUsername"`
	DeviceType        *string `json:"deviceType,omitempty"`
}

func NewPeerProfile(p *Peer, owner *Account) PeerProfile {
	return PeerProfile{
		ID:                p.ID,
		PublicKey:         p.PublicKey,
		AllowedIPs:        p.AllowedIPs,
		DeviceDescription: p.DeviceDescription,
		OwnerName:         owner.Name,
		OwnerUsername:     owner.Username,
		DeviceType:        p.DeviceType,
	}
}

type Setting struct {
	Key   string `gorm:"column:setting_key;primaryKey;size:64"`
	Value string `gorm:"not null"`
}
