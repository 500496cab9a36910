package fundamentals

import "fmt"

// Field aliases, resolved first-match-wins against folded raw keys
// (lowercased, separators stripped). Sources disagree on casing and
// naming, so every canonical field carries the spellings seen in the
// wild; order encodes preference. Resolution happens once at ingestion
// and never again downstream.

var symbolAliases = []string{"symbol", "ticker", "tickersymbol", "code", "stockcode"}

var nameAliases = []string{"name", "companyname", "longname", "shortname", "company"}

var scalarAliases = map[string][]string{
	"marketCap":       {"marketcap", "marketcapitalization", "mktcap", "marketvalue"},
	"price":           {"price", "currentprice", "lastprice", "closeprice", "close"},
	"revenue":         {"revenue", "totalrevenue", "revenuettm", "sales"},
	"netIncome":       {"netincome", "netincomettm", "netprofit", "earnings"},
	"netProfitMargin": {"netprofitmargin", "netmargin", "profitmargin"},
	"freeCashFlow":    {"freecashflow", "fcf", "freecashflowttm"},

	"totalAssets": {"totalassets", "assets"},
	"totalEquity": {"totalequity", "equity", "shareholdersequity", "stockholdersequity"},
	"totalDebt":   {"totaldebt", "debt", "totalliabilitiesdebt"},

	"roic10YAvg":         {"roic10yavg", "roicavg10y", "roic10yearavg", "avgroic10y"},
	"roic10YStd":         {"roic10ystd", "roicstd10y", "roic10yearstd", "stdroic10y"},
	"fcfMargin":          {"fcfmargin", "freecashflowmargin"},
	"fcfMarginMedian10Y": {"fcfmarginmedian10y", "fcfmargin10ymedian", "medianfcfmargin10y"},
	"dcfImpliedGrowth":   {"dcfimpliedgrowth", "impliedgrowth", "impliedgrowthrate"},
	"marginOfSafety":     {"marginofsafety", "mos", "safetymargin"},
	"revenueGrowth1Y":    {"revenuegrowth1y", "revgrowth1y", "revenuegrowth1year"},
	"revenueGrowth5Y":    {"revenuegrowth5y", "revgrowth5y", "revenuegrowth5year"},
	"revenueGrowth10Y":   {"revenuegrowth10y", "revgrowth10y", "revenuegrowth10year"},
}

// seriesAliases returns the alias list for year n (1-based) of a
// point-in-time series. "revenue" year 3 matches revenueY3, revenue_y3,
// revenue3y and rev3 spellings after folding.
func seriesAliases(base, short string, n int) []string {
	return []string{
		fmt.Sprintf("%sy%d", base, n),
		fmt.Sprintf("%s%dy", base, n),
		fmt.Sprintf("%syear%d", base, n),
		fmt.Sprintf("%s%d", short, n),
	}
}
