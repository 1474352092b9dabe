package csvexport

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/market-sim/internal/domain"
)

func date(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}

func testSnapshot(t *testing.T) *domain.Snapshot {
	t.Helper()
	acme := &domain.Instrument{
		Symbol:       "ACME",
		Name:         "Acme, Inc.",
		CurrentPrice: domain.NewDecimalFromInt(12),
		Source:       domain.InstrumentSourceSimulated,
		History: []domain.PricePoint{
			{Date: date(1), Price: domain.NewDecimalFromInt(10)},
			{Date: date(3), Price: domain.NewDecimalFromInt(12)},
		},
	}
	beta := &domain.Instrument{
		Symbol:       "BETA",
		Name:         "Beta",
		CurrentPrice: domain.NewDecimalFromInt(7),
		Source:       domain.InstrumentSourceReal,
		History: []domain.PricePoint{
			{Date: date(1), Price: domain.NewDecimalFromInt(6)},
			{Date: date(2), Price: domain.NewDecimalFromInt(7)},
		},
	}
	return &domain.Snapshot{
		Instruments: []*domain.Instrument{acme, beta},
		Markets: []domain.MarketRecord{
			{Name: "NYSE", Symbols: []string{"ACME", "BETA"}},
			{Name: "EMPTY"},
		},
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		dataset  string
		expected string
	}{
		{
			dataset: DatasetInstruments,
			expected: "symbol,name,current_price,source\n" +
				"ACME,\"Acme, Inc.\",12,simulated\n" +
				"BETA,Beta,7,real\n",
		},
		{
			dataset: DatasetPriceHistory,
			expected: "symbol,date,price\n" +
				"ACME,2024-03-01,10\n" +
				"BETA,2024-03-01,6\n" +
				"BETA,2024-03-02,7\n" +
				"ACME,2024-03-03,12\n",
		},
		{
			dataset: DatasetMarkets,
			expected: "market,instrument_count,exported_at\n" +
				"NYSE,2,2024-03-15\n" +
				"EMPTY,0,2024-03-15\n",
		},
	}

	snap := testSnapshot(t)
	for _, tt := range tests {
		t.Run(tt.dataset, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tt.dataset, snap, date(15).Add(13*time.Hour)))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestWrite_EmptySnapshotHasHeaderOnly(t *testing.T) {
	for _, dataset := range Datasets() {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, dataset, &domain.Snapshot{}, time.Now()))
		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")), dataset)
	}
}

func TestWrite_UnknownDataset(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "investors", testSnapshot(t), time.Now())
	assert.ErrorIs(t, err, ErrUnknownDataset)
	assert.Zero(t, buf.Len())
}
