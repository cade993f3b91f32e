package ticker

// companyAliases maps lowercase company names to their primary listing
// symbol. Matching is case-insensitive whole-word.
var companyAliases = map[string]string{
	"apple":       "AAPL",
	"microsoft":   "MSFT",
	"tesla":       "TSLA",
	"amazon":      "AMZN",
	"alphabet":    "GOOGL",
	"google":      "GOOGL",
	"nvidia":      "NVDA",
	"meta":        "META",
	"facebook":    "META",
	"netflix":     "NFLX",
	"jpmorgan":    "JPM",
	"jp morgan":   "JPM",
	"goldman":     "GS",
	"intel":       "INTC",
	"boeing":      "BA",
	"disney":      "DIS",
	"walmart":     "WMT",
	"coca-cola":   "KO",
	"salesforce":  "CRM",
	"exxon":       "XOM",
	"palantir":    "PLTR",
	"broadcom":    "AVGO",
	"qualcomm":    "QCOM",
	"oracle":      "ORCL",
	"adobe":       "ADBE",
	"paypal":      "PYPL",
	"starbucks":   "SBUX",
	"mcdonald's":  "MCD",
	"caterpillar": "CAT",
}

// symbolStopwords lists short common English words that match the 1-5
// uppercase-letter ticker pattern but are almost never meant as symbols.
var symbolStopwords = map[string]bool{
	"A": true, "I": true, "AM": true, "AN": true, "AS": true, "AT": true,
	"BE": true, "BY": true, "DO": true, "GO": true, "IF": true, "IN": true,
	"IS": true, "IT": true, "ME": true, "MY": true, "NO": true, "OF": true,
	"OK": true, "ON": true, "OR": true, "SO": true, "TO": true, "UP": true,
	"US": true, "WE": true,
	"ALL": true, "AND": true, "ARE": true, "BUY": true, "CAN": true,
	"CEO": true, "DID": true, "ETF": true, "FOR": true, "GET": true,
	"HAS": true, "HOW": true, "IPO": true, "ITS": true, "LOW": true,
	"NEW": true, "NOT": true, "NOW": true, "OUT": true, "SEE": true,
	"THE": true, "USD": true, "WAS": true, "WHO": true, "WHY": true,
	"YES": true, "YOU": true,
	"DATA": true, "DOES": true, "FROM": true, "GIVE": true, "HAVE": true,
	"HIGH": true, "HOLD": true, "JUST": true, "LAST": true, "NEXT": true,
	"OPEN": true, "OVER": true, "SELL": true, "SHOW": true, "SOME": true,
	"THAT": true, "THIS": true, "WHAT": true, "WHEN": true, "WILL": true,
	"WITH": true, "YOUR": true,
	"ABOUT": true, "COULD": true, "PRICE": true, "SHARE": true,
	"STOCK": true, "TODAY": true, "WOULD": true,
}
