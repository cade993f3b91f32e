package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolGetStockQuote = "get_stock_quote"
	ToolGetKeyLevels  = "get_key_levels"
)

// GetMarketTools returns the business tools exposed to the response model.
func GetMarketTools() []tool.BaseTool {
	return []tool.BaseTool{
		createGetStockQuoteTool(),
		createGetKeyLevelsTool(),
	}
}

// GetToolInfos collects the ToolInfo for each tool so they can be bound to a
// chat model.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
