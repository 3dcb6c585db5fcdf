// Package ssoauth implements the best-effort SSO nonce lookup behind
// DB.getSSOAuthInfo. Grounded on pkg/auth/jwt.go's package shape (sentinel
// error, small exported functions, env-sourced secret material) even
// though the nonce itself is not a JWT.
package ssoauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// ErrNotConfigured names the SSO-disabled case. Nothing in this package
// returns it: Lookup answers a disabled network with an empty AuthInfo.
var ErrNotConfigured = errors.New("ssoauth: sso not enabled for this network")

// nonceExpiry is the short-lived window spec.md §4.3 wants for
// newly-minted nonces.
const nonceExpiry = 5 * time.Minute

// ssoExpiryRow mirrors the ztc_sso_expiry table this package reads and
// writes.
type ssoExpiryRow struct {
	NetworkID string `gorm:"column:network_id"`
	MemberID  string `gorm:"column:member_id"`
	Nonce     string `gorm:"column:nonce"`
	State     string `gorm:"column:state"`
	ExpiresAt int64  `gorm:"column:expires_at"`
}

func (ssoExpiryRow) TableName() string { return "ztc_sso_expiry" }

// Lookup returns a short-lived SSO nonce for the given member, minting a
// fresh one if none is outstanding or the existing one expired. Any
// failure degrades to an empty AuthInfo — this path must never propagate
// an error to DB.getSSOAuthInfo's caller (spec.md §7, SSOFailure).
func Lookup(gdb *gorm.DB, member model.MemberRecord, ssoEnabled bool, redirectURL string) model.AuthInfo {
	if !ssoEnabled {
		return model.AuthInfo{}
	}
	info, err := lookup(gdb, member, redirectURL)
	if err != nil {
		return model.AuthInfo{}
	}
	return info
}

func lookup(gdb *gorm.DB, member model.MemberRecord, redirectURL string) (model.AuthInfo, error) {
	now := time.Now()

	var row ssoExpiryRow
	err := gdb.Where("network_id = ? AND member_id = ?", member.NetworkID, member.ID).First(&row).Error
	if err == nil && row.ExpiresAt > now.UnixMilli() {
		return model.AuthInfo{
			URL:       redirectURL + "?nonce=" + row.Nonce + "&state=" + row.State,
			Nonce:     row.Nonce,
			State:     row.State,
			ExpiresAt: time.UnixMilli(row.ExpiresAt),
		}, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AuthInfo{}, fmt.Errorf("ssoauth: lookup: %w", err)
	}

	nonce, err := randomHex(16)
	if err != nil {
		return model.AuthInfo{}, fmt.Errorf("ssoauth: generate nonce: %w", err)
	}
	state, err := randomHex(16)
	if err != nil {
		return model.AuthInfo{}, fmt.Errorf("ssoauth: generate state: %w", err)
	}
	expiresAt := now.Add(nonceExpiry)

	row = ssoExpiryRow{
		NetworkID: member.NetworkID,
		MemberID:  member.ID,
		Nonce:     nonce,
		State:     state,
		ExpiresAt: expiresAt.UnixMilli(),
	}
	if err := gdb.Save(&row).Error; err != nil {
		return model.AuthInfo{}, fmt.Errorf("ssoauth: save: %w", err)
	}

	return model.AuthInfo{
		URL:       redirectURL + "?nonce=" + nonce + "&state=" + state,
		Nonce:     nonce,
		State:     state,
		ExpiresAt: expiresAt,
	}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
