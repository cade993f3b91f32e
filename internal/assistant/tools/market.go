package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/piquette/finance-go/quote"
)

// ===================================
// Get Stock Quote Tool
// ===================================

type GetStockQuoteInput struct {
	Symbol string `json:"symbol"`
}

type GetStockQuoteOutput struct {
	Symbol               string  `json:"symbol"`
	Price                float64 `json:"price"`
	Change               float64 `json:"change"`
	ChangePercent        float64 `json:"change_percent"`
	Volume               int     `json:"volume"`
	Open                 float64 `json:"open"`
	High                 float64 `json:"high"`
	Low                  float64 `json:"low"`
	PreviousClose        float64 `json:"previous_close"`
	FiftyDayAverage      float64 `json:"fifty_day_average"`
	TwoHundredDayAverage float64 `json:"two_hundred_day_average"`
	MarketState          string  `json:"market_state"`
}

func createGetStockQuoteTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetStockQuote,
			Desc: "Fetch the latest market quote for a stock symbol: price, change, volume, day range, previous close and long-run moving averages. Use this whenever the user asks about a specific stock.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "Stock ticker symbol, 1-5 uppercase letters (e.g. AAPL, MSFT).",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *GetStockQuoteInput) (*GetStockQuoteOutput, error) {
			sym := strings.ToUpper(strings.TrimSpace(in.Symbol))
			if sym == "" {
				return nil, fmt.Errorf("symbol is required")
			}

			q, err := quote.Get(sym)
			if err != nil {
				return nil, fmt.Errorf("quote lookup for %s: %w", sym, err)
			}
			if q == nil {
				return nil, fmt.Errorf("no quote data for %s", sym)
			}

			return &GetStockQuoteOutput{
				Symbol:               q.Symbol,
				Price:                q.RegularMarketPrice,
				Change:               q.RegularMarketChange,
				ChangePercent:        q.RegularMarketChangePercent,
				Volume:               q.RegularMarketVolume,
				Open:                 q.RegularMarketOpen,
				High:                 q.RegularMarketDayHigh,
				Low:                  q.RegularMarketDayLow,
				PreviousClose:        q.RegularMarketPreviousClose,
				FiftyDayAverage:      q.FiftyDayAverage,
				TwoHundredDayAverage: q.TwoHundredDayAverage,
				MarketState:          string(q.MarketState),
			}, nil
		},
	)
}

// ===================================
// Get Key Levels Tool
// ===================================

type GetKeyLevelsInput struct {
	Symbol string `json:"symbol"`
}

type GetKeyLevelsOutput struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

func createGetKeyLevelsTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetKeyLevels,
			Desc: "Derive candidate support and resistance levels for a stock symbol from its day range, previous close and moving averages. Levels are sorted relative to the current price.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "Stock ticker symbol, 1-5 uppercase letters (e.g. AAPL, MSFT).",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *GetKeyLevelsInput) (*GetKeyLevelsOutput, error) {
			sym := strings.ToUpper(strings.TrimSpace(in.Symbol))
			if sym == "" {
				return nil, fmt.Errorf("symbol is required")
			}

			q, err := quote.Get(sym)
			if err != nil {
				return nil, fmt.Errorf("quote lookup for %s: %w", sym, err)
			}
			if q == nil {
				return nil, fmt.Errorf("no quote data for %s", sym)
			}

			price := q.RegularMarketPrice
			candidates := []float64{
				q.RegularMarketDayLow,
				q.RegularMarketDayHigh,
				q.RegularMarketPreviousClose,
				q.FiftyDayAverage,
				q.TwoHundredDayAverage,
			}

			out := &GetKeyLevelsOutput{Symbol: q.Symbol, Price: price}
			for _, c := range candidates {
				if c <= 0 {
					continue
				}
				if c < price {
					out.Support = append(out.Support, c)
				} else if c > price {
					out.Resistance = append(out.Resistance, c)
				}
			}
			// nearest level first on both sides
			sort.Sort(sort.Reverse(sort.Float64Slice(out.Support)))
			sort.Float64s(out.Resistance)
			return out, nil
		},
	)
}
