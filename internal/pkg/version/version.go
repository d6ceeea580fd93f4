// ### 发布流程
// 1. **更新版本号**：修改 `internal/pkg/version/version.go`
// 2. **构建时注入**：-ldflags "-X .../version.GitCommit=..."

package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0" // 版本号 -- 发布时候更新版本号
	BuildTime string
	GitCommit string
	GoVersion = runtime.Version()
)

func GetVersion() string {
	return Version
}

func GetFullVersion() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		Version, orUnknown(GitCommit), orUnknown(BuildTime), GoVersion, runtime.GOOS, runtime.GOARCH)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func GetUserAgent() string {
	return "pma-daemon/" + Version
}
