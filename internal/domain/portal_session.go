package domain

import "time"

// PortalSession tracks one client MAC through the captive portal. ClientMAC is unique so the
// store, not the caller, guarantees a single session per client.
type PortalSession struct {
	ID              uint      `gorm:"column:id;primaryKey" json:"id"`
	ClientMAC       string    `gorm:"column:client_mac;size:17;uniqueIndex;not null" json:"client_mac"`
	APMAC           *string   `gorm:"column:ap_mac;size:17" json:"ap_mac"`
	GatewayMAC      *string   `gorm:"column:gateway_mac;size:17" json:"gateway_mac"`
	SSIDName        *string   `gorm:"column:ssid_name;size:100" json:"ssid_name"`
	VLANID          *string   `gorm:"column:vlan_id;size:10" json:"vlan_id"`
	RadioID         *string   `gorm:"column:radio_id;size:10" json:"radio_id"`
	SiteName        string    `gorm:"column:site_name;size:100;not null" json:"site_name"`
	RedirectURL     string    `gorm:"column:redirect_url;size:2048" json:"redirect_url"`
	Token           *string   `gorm:"column:token;size:100" json:"-"`
	IsAuthenticated bool      `gorm:"column:is_authenticated;not null;default:false" json:"is_authenticated"`
	CreatedAt       time.Time `gorm:"column:created_at;index" json:"created_at"`
	ExpiresAt       time.Time `gorm:"column:expires_at;index;not null" json:"expires_at"`
}

// Wireless reports whether the client associated through an access point rather than a wired gateway.
func (s *PortalSession) Wireless() bool {
	return s.APMAC != nil && *s.APMAC != ""
}

func (s *PortalSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
