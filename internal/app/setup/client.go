package setup

import (
	"github.com/pma-it-suite/daemon/internal/config"
	apiclient "github.com/pma-it-suite/daemon/internal/pkg/client"
)

// SetupClient 初始化控制端客户端
func SetupClient(cfg *config.Config) *ClientModule {
	c := cfg.Control
	return &ClientModule{
		API: apiclient.NewHTTPClient(apiclient.Options{
			BaseURL:         c.BaseURL,
			DownloadPath:    c.DownloadPath,
			RequestTimeout:  c.RequestTimeout,
			DownloadTimeout: c.DownloadTimeout,
			RetryCount:      c.RetryCount,
			RetryWait:       c.RetryWait,
			RetryMaxWait:    c.RetryMaxWait,
			SkipTLSVerify:   c.SkipTLSVerify,
		}),
	}
}
