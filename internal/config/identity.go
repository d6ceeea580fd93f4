package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/pma-it-suite/daemon/internal/model/client"
)

// Identity 用户身份，只从环境变量获取，不提供任何默认值
type Identity struct {
	UserID     string `envconfig:"USER_ID" required:"true"`
	UserSecret string `envconfig:"USER_SECRET" required:"true"`
}

// LoadIdentity 读取 FLEET_USER_ID / FLEET_USER_SECRET
// 缺失或为空时返回 ErrIdentityMissing
func LoadIdentity() (*Identity, error) {
	var id Identity
	if err := envconfig.Process(EnvPrefix, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrIdentityMissing, err)
	}
	id.UserID = strings.TrimSpace(id.UserID)
	id.UserSecret = strings.TrimSpace(id.UserSecret)
	if id.UserID == "" || id.UserSecret == "" {
		return nil, client.ErrIdentityMissing
	}
	return &id, nil
}
