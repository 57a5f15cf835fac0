package columnar

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

func parquetCodec(compression string) (compress.Compression, error) {
	switch compression {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", compression)
	}
}

// writeOnly hides Close from the parquet file writer, which otherwise closes
// its sink itself. Write owns the file and closes it exactly once.
type writeOnly struct{ io.Writer }

func (w *Writer) writeParquet(out io.Writer, t *table.Table) error {
	codec, err := parquetCodec(w.config.Compression)
	if err != nil {
		return err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithAllocator(w.mem),
		parquet.WithCreatedBy("pitchline"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(w.mem),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(t.Schema(), writeOnly{out}, props, arrowProps)
	if err != nil {
		return err
	}
	if t.NumRows() > 0 {
		if err := fw.Write(t.Record()); err != nil {
			_ = fw.Close()
			return err
		}
	}
	return fw.Close()
}

func readParquet(ctx context.Context, name string, r parquet.ReaderAtSeeker, mem memory.Allocator) (*table.Table, error) {
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()
	return table.FromArrowTable(name, tbl, mem)
}
