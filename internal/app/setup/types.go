package setup

import (
	"net/http"

	"github.com/pma-it-suite/daemon/internal/app/mockserver/registry"
	"github.com/pma-it-suite/daemon/internal/app/mockserver/router"
	apiclient "github.com/pma-it-suite/daemon/internal/pkg/client"
	"github.com/pma-it-suite/daemon/internal/pkg/localstore"
	"github.com/pma-it-suite/daemon/internal/pkg/servicectl"
)

// ClientModule 控制端通信模块
type ClientModule struct {
	API *apiclient.HTTPClient
}

// StoreModule 本地状态模块
// Launcher 只持有 LauncherStore，Agent 只持有 AppStore
type StoreModule struct {
	LauncherStore *localstore.Store
	AppStore      *localstore.Store
}

// ServiceModule 系统服务模块
type ServiceModule struct {
	Manager servicectl.Manager
	Label   string
}

// ServerModule 模拟控制端服务器模块
type ServerModule struct {
	Registry   *registry.Registry
	Router     *router.Router
	HTTPServer *http.Server
}
