// Package csvexport writes simulation snapshots as CSV tables.
package csvexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jmanzanog/market-sim/internal/domain"
)

const (
	DatasetInstruments  = "instruments"
	DatasetPriceHistory = "price-history"
	DatasetMarkets      = "markets"
)

var ErrUnknownDataset = errors.New("unknown export dataset")

// Datasets lists the exportable tables in a stable order.
func Datasets() []string {
	return []string{DatasetInstruments, DatasetPriceHistory, DatasetMarkets}
}

// Write renders one dataset of snap to w. exportedAt stamps the markets table.
func Write(w io.Writer, dataset string, snap *domain.Snapshot, exportedAt time.Time) error {
	var rows [][]string
	switch dataset {
	case DatasetInstruments:
		rows = instrumentRows(snap)
	case DatasetPriceHistory:
		rows = priceHistoryRows(snap)
	case DatasetMarkets:
		rows = marketRows(snap, exportedAt)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s csv: %w", dataset, err)
	}
	return nil
}

func instrumentRows(snap *domain.Snapshot) [][]string {
	rows := [][]string{{"symbol", "name", "current_price", "source"}}
	for _, inst := range snap.Instruments {
		rows = append(rows, []string{inst.Symbol, inst.Name, inst.CurrentPrice.String(), string(inst.Source)})
	}
	return rows
}

// priceHistoryRows lists every recorded price, oldest day first. Entries on the same
// day keep instrument creation order.
func priceHistoryRows(snap *domain.Snapshot) [][]string {
	type entry struct {
		symbol string
		point  domain.PricePoint
	}
	var entries []entry
	for _, inst := range snap.Instruments {
		for _, p := range inst.History {
			entries = append(entries, entry{symbol: inst.Symbol, point: p})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].point.Date.Before(entries[j].point.Date)
	})

	rows := [][]string{{"symbol", "date", "price"}}
	for _, e := range entries {
		rows = append(rows, []string{e.symbol, e.point.Date.Format(time.DateOnly), e.point.Price.String()})
	}
	return rows
}

func marketRows(snap *domain.Snapshot, exportedAt time.Time) [][]string {
	rows := [][]string{{"market", "instrument_count", "exported_at"}}
	stamp := exportedAt.Format(time.DateOnly)
	for _, m := range snap.Markets {
		rows = append(rows, []string{m.Name, strconv.Itoa(len(m.Symbols)), stamp})
	}
	return rows
}
