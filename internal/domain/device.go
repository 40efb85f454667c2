package domain

import "time"

// Device is a controller-managed access point, switch or gateway reported by inventory pushes.
type Device struct {
	ID              uint      `gorm:"column:id;primaryKey" json:"id"`
	DeviceID        string    `gorm:"column:device_id;size:100;uniqueIndex;not null" json:"device_id"`
	Name            string    `gorm:"column:name;size:200;not null" json:"name"`
	MACAddress      string    `gorm:"column:mac_address;size:17;not null" json:"mac_address"`
	IPAddress       *string   `gorm:"column:ip_address;size:45" json:"ip_address"`
	Model           string    `gorm:"column:model;size:100;not null" json:"model"`
	FirmwareVersion string    `gorm:"column:firmware_version;size:50;not null" json:"firmware_version"`
	Status          string    `gorm:"column:status;size:50;not null" json:"status"`
	LastSeen        time.Time `gorm:"column:last_seen;index;not null" json:"last_seen"`
	Clients         []Client  `gorm:"foreignKey:DeviceRefID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// Client is an end station associated through exactly one Device.
type Client struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	ClientID       string    `gorm:"column:client_id;size:100;uniqueIndex;not null" json:"client_id"`
	MACAddress     string    `gorm:"column:mac_address;size:17;not null" json:"mac_address"`
	IPAddress      *string   `gorm:"column:ip_address;size:45" json:"ip_address"`
	Hostname       *string   `gorm:"column:hostname;size:200" json:"hostname"`
	DeviceRefID    uint      `gorm:"column:device_ref_id;index;not null" json:"device_ref_id"`
	ConnectedSince time.Time `gorm:"column:connected_since;not null" json:"connected_since"`
	LastSeen       time.Time `gorm:"column:last_seen;index;not null" json:"last_seen"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}
