package system

import (
	"context"
	"encoding/json"

	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/pkg/monitor"
)

// TestOutput Test 命令的固定输出
const TestOutput = "test"

// HandleTest 不启动子进程
func HandleTest(_ context.Context, _ *client.Command) (string, error) {
	return TestOutput, nil
}

// HandleHealth 返回存活信息 JSON
func HandleHealth(ctx context.Context, cmd *client.Command) (string, error) {
	return marshalReport(cmd.ID, monitor.GetHealthReport(ctx))
}

// HandleInfo 返回主机信息 JSON
func HandleInfo(ctx context.Context, cmd *client.Command) (string, error) {
	return marshalReport(cmd.ID, monitor.GetSystemInfo(ctx))
}

func marshalReport(commandID string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", base.NewCommandError(base.SerializationError, commandID, "failed to encode report", err)
	}
	return string(data), nil
}
