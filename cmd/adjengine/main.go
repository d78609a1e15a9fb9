// cmd/adjengine computes corporate-action adjustment factors and applies
// them to stored daily bars, without running the full engine daemon.
//
// Usage:
//
//	go run ./cmd/adjengine --db=data/stockdb.db --events=actions.json
//	go run ./cmd/adjengine --db=data/stockdb.db --symbols=600519,000001 --apply=forward --from=2023-01-01
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"stockdbv1/internal/adjust"
	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
	sqlitestore "stockdbv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "data/stockdb.db", "Path to SQLite database")
	symbolsStr := flag.String("symbols", "", "Comma-separated symbols (required for --apply; filters --events)")
	eventsPath := flag.String("events", "", "JSON file with corporate actions; computes and stores factors")
	applyMode := flag.String("apply", "", "Apply stored factors to bars: forward or backward")
	fromStr := flag.String("from", "", "Start date YYYY-MM-DD (apply mode)")
	toStr := flag.String("to", "", "End date YYYY-MM-DD (apply mode)")
	flag.Parse()

	if *eventsPath == "" && *applyMode == "" {
		log.Fatal("[adjengine] nothing to do: pass --events or --apply")
	}
	symbols := splitSymbols(*symbolsStr)
	if *applyMode != "" && len(symbols) == 0 {
		log.Fatal("[adjengine] --apply needs --symbols")
	}

	store, err := sqlitestore.New(sqlitestore.StoreConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[adjengine] sqlite open failed: %v", err)
	}
	defer store.Close()

	eng := adjust.NewEngine(store)
	ctx := context.Background()

	if *eventsPath != "" {
		computeFactors(ctx, eng, symbols, *eventsPath)
	}
	if *applyMode != "" {
		for _, symbol := range symbols {
			applyFactors(ctx, store, eng, symbol, *applyMode, *fromStr, *toStr)
		}
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// computeFactors reads a corporate-action file, groups actions by symbol,
// and computes and stores the cumulative factor table per symbol. A
// non-empty symbol list restricts which symbols are processed.
func computeFactors(ctx context.Context, eng *adjust.Engine, symbols []string, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("[adjengine] read events: %v", err)
	}
	var actions []model.CorporateAction
	if err := json.Unmarshal(raw, &actions); err != nil {
		log.Fatalf("[adjengine] parse events: %v", err)
	}

	wanted := map[string]bool{}
	for _, s := range symbols {
		wanted[s] = true
	}
	bySymbol := map[string][]model.CorporateAction{}
	for _, a := range actions {
		if a.Symbol == "" {
			log.Fatalf("[adjengine] event at %s has no symbol", a.ExDate.Format("2006-01-02"))
		}
		if len(wanted) > 0 && !wanted[a.Symbol] {
			continue
		}
		bySymbol[a.Symbol] = append(bySymbol[a.Symbol], a)
	}
	if len(bySymbol) == 0 {
		log.Fatal("[adjengine] no matching events")
	}

	fmt.Printf("%-12s %-12s %12s %12s %12s\n", "symbol", "ex_date", "forward", "backward", "total")
	for symbol, evs := range bySymbol {
		recs, err := eng.CalculateFactors(ctx, symbol, evs)
		if err != nil {
			log.Fatalf("[adjengine] compute factors for %s: %v", symbol, err)
		}
		for _, r := range recs {
			fmt.Printf("%-12s %-12s %12.6f %12.6f %12.6f\n",
				r.Symbol, r.ExDate.Format("2006-01-02"), r.ForwardFactor, r.BackwardFactor, r.TotalFactor)
		}
		log.Printf("[adjengine] stored %d factor records for %s", len(recs), symbol)
	}
}

func applyFactors(ctx context.Context, store *sqlitestore.Store, eng *adjust.Engine, symbol, mode, fromStr, toStr string) {
	m := model.AdjustMode(mode)
	if m != model.AdjustForward && m != model.AdjustBackward {
		log.Fatalf("[adjengine] invalid --apply mode %q", mode)
	}

	r := model.DateRange{End: time.Now().UTC()}
	var err error
	if fromStr != "" {
		if r.Start, err = time.Parse("2006-01-02", fromStr); err != nil {
			log.Fatalf("[adjengine] invalid --from: %v", err)
		}
	}
	if toStr != "" {
		if r.End, err = time.Parse("2006-01-02", toStr); err != nil {
			log.Fatalf("[adjengine] invalid --to: %v", err)
		}
	}

	bars, err := store.ReadBars(ctx, symbol, r)
	if err != nil {
		log.Fatalf("[adjengine] read bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("[adjengine] no bars for %s in range", symbol)
	}

	f := barsFrame(bars)
	adjusted, err := eng.Adjust(ctx, f, symbol, m)
	if err != nil {
		log.Fatalf("[adjengine] adjust: %v", err)
	}

	raw := f.Col(model.ColClose)
	adj := adjusted.Col(model.ColClose)
	dates := adjusted.Dates()

	fmt.Printf("%-12s %12s %12s\n", "date", "close", mode+"_close")
	for i, d := range dates {
		if math.IsNaN(raw[i]) {
			continue
		}
		fmt.Printf("%-12s %12.4f %12.4f\n", d.Format("2006-01-02"), raw[i], adj[i])
	}
	log.Printf("[adjengine] %s-adjusted %d rows for %s", mode, len(dates), symbol)
}

// barsFrame lays bars out as price columns over their date index.
func barsFrame(bars []model.DailyBar) *frame.Frame {
	dates := make([]time.Time, len(bars))
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closep := make([]float64, len(bars))
	pre := make([]float64, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
		open[i], high[i], low[i], closep[i], pre[i] = b.Open, b.High, b.Low, b.Close, b.PreClose
	}
	f := frame.New(dates)
	f.MustSet(model.ColOpen, open)
	f.MustSet(model.ColHigh, high)
	f.MustSet(model.ColLow, low)
	f.MustSet(model.ColClose, closep)
	f.MustSet(model.ColPreClose, pre)
	return f
}
