package yahoo

import "strings"

// bseToNSE maps BSE scrip codes found in portfolio sheets to NSE tickers,
// which Yahoo quotes more reliably.
var bseToNSE = map[string]string{
	"532174": "ICICIBANK",
	"544252": "BAJAJHFL",
	"542651": "KPITTECH",
	"544028": "TATATECH",
	"544107": "BLSE",
	"532790": "TANLA",
	"532540": "TATACONSUM",
	"500331": "PIDILITIND",
	"500400": "TATAPOWER",
	"542323": "KPIGREEN",
	"532667": "SUZLON",
	"542851": "GENSOL",
	"543517": "HARIOMPIPE",
	"542652": "POLYCAB",
	"543318": "CLEANSCIENCE",
	"506401": "DEEPAKNTR",
	"541557": "FINEORG",
	"533282": "GRAVITA",
	"540719": "SBILIFE",
	"500209": "INFY",
	"543237": "HAPPSTMNDS",
	"543272": "EASEMYTRIP",
	"511577": "STEL",
}

// FormatSymbol converts a portfolio symbol to Yahoo's ticker format.
// Symbols that already carry an exchange suffix pass through unchanged,
// known BSE codes become their NSE ticker, everything else gets ".NS".
func FormatSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if strings.Contains(symbol, ".") {
		return symbol
	}
	if nse, ok := bseToNSE[symbol]; ok {
		return nse + ".NS"
	}
	return strings.ToUpper(symbol) + ".NS"
}
