package stats

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// TradeParquetRow is the export schema for one trade.
type TradeParquetRow struct {
	Timestamp     int64   `parquet:"name=timestamp, type=INT64"`
	Pair          string  `parquet:"name=pair, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProfitUsdt    float64 `parquet:"name=profit_usdt, type=DOUBLE"`
	VolumeUsdt    float64 `parquet:"name=volume_usdt, type=DOUBLE"`
	ProfitPercent float64 `parquet:"name=profit_percent, type=DOUBLE"`
	GasCostUsdt   float64 `parquet:"name=gas_cost_usdt, type=DOUBLE"`
	NetProfitUsdt float64 `parquet:"name=net_profit_usdt, type=DOUBLE"`
}

// ExportParquet dumps the trade history to a parquet file for offline
// analysis.
func (l *Ledger) ExportParquet(path string) error {
	snap := l.Snapshot()

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(TradeParquetRow), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}

	for _, t := range snap.Trades {
		row := TradeParquetRow{
			Timestamp:     t.Timestamp.Unix(),
			Pair:          t.PairLabel,
			ProfitUsdt:    t.ProfitQuote.InexactFloat64(),
			VolumeUsdt:    t.VolumeQuote.InexactFloat64(),
			ProfitPercent: t.ProfitPercent.InexactFloat64(),
			GasCostUsdt:   t.GasCostQuote.InexactFloat64(),
			NetProfitUsdt: t.NetProfitQuote.InexactFloat64(),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}
